package models

import (
	"fmt"
	"strings"
	"time"
)

// TeamRole is the trainee's team, which selects the scenario pool
type TeamRole string

const (
	RoleProjectManager TeamRole = "Project Manager"
	RoleSales          TeamRole = "Sales"
)

// ParseTeamRole accepts the display label or the short forms "pm" and "sales"
func ParseTeamRole(s string) (TeamRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pm", "project manager", "project_manager":
		return RoleProjectManager, nil
	case "sales":
		return RoleSales, nil
	}
	return "", fmt.Errorf("unknown team role %q", s)
}

type ScenarioCategory string

const (
	CategoryNewClientInquiry     ScenarioCategory = "New Client Inquiry"
	CategoryUpsetClient          ScenarioCategory = "Upset Client"
	CategoryUpsellOpportunity    ScenarioCategory = "Upsell Opportunity"
	CategorySchedulingConflict   ScenarioCategory = "Scheduling Conflict"
	CategoryScopeChange          ScenarioCategory = "Scope Change"
	CategoryBudgetObjection      ScenarioCategory = "Budget Objection"
	CategoryCompetitorComparison ScenarioCategory = "Competitor Comparison"
	CategoryRushRequest          ScenarioCategory = "Rush Request"
	CategoryQualityComplaint     ScenarioCategory = "Quality Complaint"
	CategoryFollowUpClose        ScenarioCategory = "Follow-Up Close"
)

var scenarioCategories = []ScenarioCategory{
	CategoryNewClientInquiry,
	CategoryUpsetClient,
	CategoryUpsellOpportunity,
	CategorySchedulingConflict,
	CategoryScopeChange,
	CategoryBudgetObjection,
	CategoryCompetitorComparison,
	CategoryRushRequest,
	CategoryQualityComplaint,
	CategoryFollowUpClose,
}

func (c ScenarioCategory) Valid() bool {
	for _, known := range scenarioCategories {
		if c == known {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty is case-insensitive
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ScoreCategory is one of the six skill dimensions the evaluator grades.
// ScoreCategoryUnknown is the decode target for labels outside the set;
// evaluation drops those entries.
type ScoreCategory string

const (
	ScoreSolutionFinding ScoreCategory = "Solution Finding"
	ScoreSpeed           ScoreCategory = "Speed & Responsiveness"
	ScoreEfficiency      ScoreCategory = "Efficiency"
	ScoreCommunication   ScoreCategory = "Communication"
	ScoreEmpathy         ScoreCategory = "Empathy & Rapport"
	ScoreClosing         ScoreCategory = "Closing & Next Steps"

	ScoreCategoryUnknown ScoreCategory = ""
)

// ScoreCategories lists the dimensions in the order the evaluator is asked for them
var ScoreCategories = []ScoreCategory{
	ScoreSolutionFinding,
	ScoreSpeed,
	ScoreEfficiency,
	ScoreCommunication,
	ScoreEmpathy,
	ScoreClosing,
}

// UnmarshalText matches labels exactly. Anything else becomes ScoreCategoryUnknown
// rather than an error so a single odd entry cannot fail a whole evaluation.
func (c *ScoreCategory) UnmarshalText(text []byte) error {
	label := ScoreCategory(text)
	for _, known := range ScoreCategories {
		if label == known {
			*c = known
			return nil
		}
	}
	*c = ScoreCategoryUnknown
	return nil
}

type DealOutcome string

const (
	DealClosed         DealOutcome = "closed"
	DealLost           DealOutcome = "lost"
	DealFollowUpNeeded DealOutcome = "follow-up needed"
)

const DefaultDealOutcome = DealFollowUpNeeded

// DealOutcomes lists the accepted evaluator values
var DealOutcomes = []DealOutcome{DealClosed, DealLost, DealFollowUpNeeded}

// UnmarshalText tolerates case and spacing differences ("Follow up needed").
// Unrecognised values fall back to DefaultDealOutcome.
func (o *DealOutcome) UnmarshalText(text []byte) error {
	normalized := strings.ToLower(strings.TrimSpace(string(text)))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "followup", "follow-up")
	normalized = strings.ReplaceAll(normalized, "follow up", "follow-up")
	for _, known := range DealOutcomes {
		if DealOutcome(normalized) == known {
			*o = known
			return nil
		}
	}
	*o = DefaultDealOutcome
	return nil
}

type MessageRole string

const (
	MessageRolePersona MessageRole = "client"
	MessageRoleTrainee MessageRole = "trainee"
)

// ClientPersona is the simulated caller. HiddenGoal is instruction-only for
// the persona agent; use Scenario.Public before handing a scenario to a trainee.
type ClientPersona struct {
	Name          string   `json:"name" yaml:"name"`
	Company       string   `json:"company" yaml:"company"`
	Personality   string   `json:"personality" yaml:"personality"`
	HiddenGoal    string   `json:"hidden_goal,omitempty" yaml:"hidden_goal"`
	PainPoints    []string `json:"pain_points" yaml:"pain_points"`
	BudgetRange   *string  `json:"budget_range,omitempty" yaml:"budget_range"`
	Objections    []string `json:"objections" yaml:"objections"`
	DealBreakers  []string `json:"deal_breakers" yaml:"deal_breakers"`
	City          string   `json:"city,omitempty" yaml:"city"`
	PropertyType  string   `json:"property_type,omitempty" yaml:"property_type"`
	SquareFootage string   `json:"square_footage,omitempty" yaml:"square_footage"`
	ListingPrice  string   `json:"listing_price,omitempty" yaml:"listing_price"`
}

const (
	DefaultMaxTurns         = 20
	DefaultTimeLimitSeconds = 600
)

type Scenario struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Category         ScenarioCategory `json:"category"`
	TeamRole         TeamRole         `json:"team_role"`
	Difficulty       Difficulty       `json:"difficulty"`
	Description      string           `json:"description"`
	Persona          ClientPersona    `json:"client_persona"`
	SuccessCriteria  []string         `json:"success_criteria"`
	OpeningLine      string           `json:"opening_line,omitempty"`
	MaxTurns         int              `json:"max_turns"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
}

// Public returns a copy that is safe to show the trainee: the hidden goal and
// the success criteria are stripped.
func (s Scenario) Public() Scenario {
	out := s
	out.Persona.HiddenGoal = ""
	out.SuccessCriteria = nil
	return out
}

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage stamps the message with now when ts is zero
func NewMessage(role MessageRole, content string, ts time.Time) Message {
	if ts.IsZero() {
		ts = time.Now()
	}
	return Message{Role: role, Content: content, Timestamp: ts}
}

type CategoryScore struct {
	Category ScoreCategory `json:"category"`
	Score    int           `json:"score"`
	Feedback string        `json:"feedback"`
}

type ConsultationResult struct {
	OverallScore       int             `json:"overall_score"`
	Tier               string          `json:"tier"`
	TierLabel          string          `json:"tier_label"`
	CategoryScores     []CategoryScore `json:"category_scores"`
	Strengths          []string        `json:"strengths"`
	Improvements       []string        `json:"improvements"`
	KeyMoments         []string        `json:"key_moments"`
	ClientSatisfaction int             `json:"client_satisfaction"`
	DealOutcome        DealOutcome     `json:"deal_outcome"`
	Summary            string          `json:"summary"`
}

type SessionState string

const (
	SessionCreated  SessionState = "created"
	SessionActive   SessionState = "active"
	SessionComplete SessionState = "complete"
)

// ConsultationSession is one call from opening line to evaluation. It is a
// plain value: nothing in it is safe for concurrent use.
type ConsultationSession struct {
	ID             string              `json:"session_id"`
	UserEmail      string              `json:"user_email"`
	UserName       string              `json:"user_name"`
	TeamRole       TeamRole            `json:"team_role"`
	Scenario       Scenario            `json:"scenario"`
	Messages       []Message           `json:"messages"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	Result         *ConsultationResult `json:"result,omitempty"`
	IsComplete     bool                `json:"is_complete"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
}

func (s *ConsultationSession) AddMessage(role MessageRole, content string, ts time.Time) Message {
	msg := NewMessage(role, content, ts)
	s.Messages = append(s.Messages, msg)
	return msg
}

// TurnCount counts trainee messages
func (s *ConsultationSession) TurnCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == MessageRoleTrainee {
			n++
		}
	}
	return n
}

func (s *ConsultationSession) IsOverLimit() bool {
	return s.TurnCount() >= s.Scenario.MaxTurns
}

// EndCall marks the session complete. The first completion time wins.
func (s *ConsultationSession) EndCall(at time.Time) {
	if s.IsComplete {
		return
	}
	s.IsComplete = true
	s.CompletedAt = &at
}

func (s *ConsultationSession) State() SessionState {
	switch {
	case s.IsComplete:
		return SessionComplete
	case len(s.Messages) > 0:
		return SessionActive
	default:
		return SessionCreated
	}
}
