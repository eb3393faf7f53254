package scenario

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Keepitcity/proof/models"
)

const (
	// IDPrefix tags generated scenario ids
	IDPrefix = "random_"
	idWidth  = 12
)

// Generator builds randomized scenarios from a catalog and sampling pools.
// It is safe for concurrent use.
type Generator struct {
	catalog Catalog
	pools   Pools
	logger  *slog.Logger
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

// WithRand replaces the randomness source, mainly for deterministic tests
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(catalog Catalog, pools Pools, opts ...Option) *Generator {
	g := &Generator{
		catalog: catalog,
		pools:   pools,
		logger:  slog.Default(),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewDefaultGenerator uses the built-in catalog and pools
func NewDefaultGenerator(opts ...Option) *Generator {
	return NewGenerator(DefaultCatalog(), DefaultPools(), opts...)
}

func (g *Generator) Catalog() Catalog {
	return g.catalog
}

// Generate instantiates a scenario for role. When difficulty is set and no
// template of that difficulty exists, the whole role pool is used instead.
// The returned difficulty is always the requested one when given.
func (g *Generator) Generate(role models.TeamRole, difficulty *models.Difficulty) (*models.Scenario, error) {
	templates := g.catalog.Templates(role)
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: no templates for role %q", models.ErrGenerationFailure, role)
	}

	if difficulty != nil {
		var filtered []Template
		for _, t := range templates {
			if t.Difficulty == *difficulty {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) > 0 {
			templates = filtered
		} else {
			g.logger.Debug("no templates for difficulty, using full pool", "role", role, "difficulty", *difficulty)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tmpl := templates[g.rng.IntN(len(templates))]
	persona, err := g.samplePersona(tmpl)
	if err != nil {
		return nil, err
	}

	fill := strings.NewReplacer(
		"{name}", persona.Name,
		"{company}", persona.Company,
		"{city}", persona.City,
		"{property_type}", persona.PropertyType,
		"{sqft}", persona.SquareFootage,
		"{price}", persona.ListingPrice,
	)

	chosen := tmpl.Difficulty
	if difficulty != nil {
		chosen = *difficulty
	}
	maxTurns := tmpl.MaxTurns
	if maxTurns <= 0 {
		maxTurns = models.DefaultMaxTurns
	}
	timeLimit := tmpl.TimeLimitSeconds
	if timeLimit <= 0 {
		timeLimit = models.DefaultTimeLimitSeconds
	}

	return &models.Scenario{
		ID:               NewID(IDPrefix, persona.Name, g.now(), idWidth),
		Title:            tmpl.Title,
		Category:         tmpl.Category,
		TeamRole:         role,
		Difficulty:       chosen,
		Description:      fill.Replace(tmpl.DescriptionTemplate),
		Persona:          persona,
		SuccessCriteria:  append([]string{}, tmpl.SuccessCriteria...),
		OpeningLine:      fill.Replace(tmpl.OpeningTemplate),
		MaxTurns:         maxTurns,
		TimeLimitSeconds: timeLimit,
	}, nil
}

// samplePersona must be called with g.mu held
func (g *Generator) samplePersona(tmpl Template) (models.ClientPersona, error) {
	hint := PersonaHint{}
	if tmpl.Persona != nil {
		hint = *tmpl.Persona
	}

	name := hint.Name
	if len(g.pools.FirstNames) > 0 && len(g.pools.LastNames) > 0 {
		name = g.pick(g.pools.FirstNames) + " " + g.pick(g.pools.LastNames)
	}
	company := g.pickOr(g.pools.Companies, hint.Company)
	if name == "" || company == "" {
		return models.ClientPersona{}, fmt.Errorf("%w: template %q has no name or company source", models.ErrGenerationFailure, tmpl.Title)
	}

	personality := hint.Personality
	if personality == "" {
		personality = g.pickOr(g.pools.Personalities, "")
	}
	// coin flip between the template's suggestion and a fresh draw
	if len(g.pools.Personalities) > 0 && g.rng.Float64() < 0.5 {
		personality = g.pick(g.pools.Personalities)
	}

	var budget *string
	if tmpl.BudgetRange != nil {
		b := *tmpl.BudgetRange
		budget = &b
	}

	return models.ClientPersona{
		Name:          name,
		Company:       company,
		Personality:   personality,
		HiddenGoal:    tmpl.HiddenGoal,
		PainPoints:    append([]string{}, tmpl.PainPoints...),
		BudgetRange:   budget,
		Objections:    append([]string{}, tmpl.Objections...),
		DealBreakers:  append([]string{}, tmpl.DealBreakers...),
		City:          g.pickOr(g.pools.Cities, hint.City),
		PropertyType:  g.pickOr(g.pools.PropertyTypes, hint.PropertyType),
		SquareFootage: g.pickOr(g.pools.SquareFootages, hint.SquareFootage),
		ListingPrice:  g.pickOr(g.pools.PriceRanges, hint.ListingPrice),
	}, nil
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

func (g *Generator) pickOr(pool []string, fallback string) string {
	if len(pool) == 0 {
		return fallback
	}
	return g.pick(pool)
}
