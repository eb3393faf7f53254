package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Keepitcity/proof/models"
)

const (
	defaultScore        = 50
	defaultSatisfaction = 50
	minScore            = 0
	maxScore            = 100
)

var (
	fencedBlock  = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
	greedyObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extract finds the JSON object in raw evaluator output. It tries the whole
// text, then each fenced code block, then the span from the first '{' to the
// last '}'.
func Extract(raw string) (string, bool) {
	candidates := []string{strings.TrimSpace(raw)}
	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if span := greedyObject.FindString(raw); span != "" {
		candidates = append(candidates, span)
	}

	for _, c := range candidates {
		if c != "" && gjson.Valid(c) && gjson.Parse(c).IsObject() {
			return c, true
		}
	}
	return "", false
}

// Parse maps evaluator output to a result. Missing fields take defaults,
// scores are clamped to [0,100] and category entries with unknown labels
// are dropped. Only output without any JSON object is an error.
func Parse(raw string, s *models.Scenario) (*models.ConsultationResult, error) {
	logger := slog.Default()
	if s != nil {
		logger = logger.With("scenario_id", s.ID)
	}

	body, ok := Extract(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in %d bytes of output", models.ErrMalformedEvaluation, len(raw))
	}

	p := payload{DealOutcome: models.DefaultDealOutcome}
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedEvaluation, err)
		}
		// mistyped fields keep their defaults
		logger.Debug("evaluation field had unexpected type", "field", typeErr.Field, "error", err)
	}

	overall := clamp(p.OverallScore.or(defaultScore))
	tier := ResolveTier(overall)

	result := &models.ConsultationResult{
		OverallScore:       overall,
		Tier:               tier.Letter,
		TierLabel:          tier.Label,
		CategoryScores:     []models.CategoryScore{},
		Strengths:          p.Strengths.orEmpty(),
		Improvements:       p.Improvements.orEmpty(),
		KeyMoments:         p.KeyMoments.orEmpty(),
		ClientSatisfaction: clamp(p.ClientSatisfaction.or(defaultSatisfaction)),
		DealOutcome:        p.DealOutcome,
		Summary:            p.Summary,
	}

	seen := make(map[models.ScoreCategory]bool, len(models.ScoreCategories))
	for _, entry := range p.CategoryScores {
		if entry.Category == models.ScoreCategoryUnknown {
			logger.Debug("dropping category score with unknown label")
			continue
		}
		if seen[entry.Category] {
			continue
		}
		seen[entry.Category] = true
		result.CategoryScores = append(result.CategoryScores, models.CategoryScore{
			Category: entry.Category,
			Score:    clamp(entry.Score.or(defaultScore)),
			Feedback: entry.Feedback,
		})
	}
	return result, nil
}

type payload struct {
	OverallScore       lenientInt         `json:"overall_score"`
	CategoryScores     []categoryPayload  `json:"category_scores"`
	Strengths          lenientStrings     `json:"strengths"`
	Improvements       lenientStrings     `json:"improvements"`
	KeyMoments         lenientStrings     `json:"key_moments"`
	ClientSatisfaction lenientInt         `json:"client_satisfaction"`
	DealOutcome        models.DealOutcome `json:"deal_outcome"`
	Summary            string             `json:"summary"`
}

// categoryPayload decodes Category through models.ScoreCategory, whose
// unknown branch marks the entry for dropping.
type categoryPayload struct {
	Category models.ScoreCategory `json:"category"`
	Score    lenientInt           `json:"score"`
	Feedback string               `json:"feedback"`
}

// lenientInt accepts integers, floats (rounded) and numeric strings.
// Anything else leaves it unset.
type lenientInt struct {
	value int
	set   bool
}

func (n *lenientInt) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.value = int(math.Round(math.Max(math.Min(f, math.MaxInt32), math.MinInt32)))
	n.set = true
	return nil
}

func (n lenientInt) or(def int) int {
	if !n.set {
		return def
	}
	return n.value
}

// lenientStrings accepts a list of any scalars or a single string
type lenientStrings []string

func (l *lenientStrings) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	switch {
	case r.IsArray():
		out := make([]string, 0, len(r.Array()))
		for _, item := range r.Array() {
			if text := strings.TrimSpace(item.String()); text != "" {
				out = append(out, text)
			}
		}
		*l = out
	case r.Type == gjson.String && strings.TrimSpace(r.Str) != "":
		*l = []string{strings.TrimSpace(r.Str)}
	}
	return nil
}

func (l lenientStrings) orEmpty() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

func clamp(v int) int {
	return max(minScore, min(maxScore, v))
}
