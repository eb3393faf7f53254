package consultation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Keepitcity/proof/evaluation"
	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/prompts"
	"github.com/Keepitcity/proof/scenario"
)

// TurnLimitMessage is returned instead of a persona reply once the trainee
// has used every turn.
const TurnLimitMessage = "[Call ended — turn limit reached]"

const (
	DefaultPersonaTimeout   = 10 * time.Second
	DefaultEvaluatorTimeout = 90 * time.Second

	sessionIDWidth = 16
)

type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

var (
	OpeningParams = GenerationParams{Temperature: 0.9, MaxTokens: 200}
	ReplyParams   = GenerationParams{Temperature: 0.8, MaxTokens: 300}
)

// PersonaAgent produces the client's next line from the chat history
type PersonaAgent interface {
	Reply(ctx context.Context, turns []prompts.Turn, params GenerationParams) (string, error)
}

// Evaluator grades a finished call from a single prompt
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// ScenarioSource is satisfied by *scenario.Generator
type ScenarioSource interface {
	Generate(role models.TeamRole, difficulty *models.Difficulty) (*models.Scenario, error)
}

// Engine drives sessions through Created, Active and Complete. It keeps no
// state of its own; callers own the sessions and must not share one across
// goroutines without their own locking.
type Engine struct {
	scenarios        ScenarioSource
	persona          PersonaAgent
	evaluator        Evaluator
	logger           *slog.Logger
	now              func() time.Time
	personaTimeout   time.Duration
	evaluatorTimeout time.Duration
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTimeouts bounds each persona and evaluator call. Zero keeps the default.
func WithTimeouts(persona, evaluator time.Duration) Option {
	return func(e *Engine) {
		if persona > 0 {
			e.personaTimeout = persona
		}
		if evaluator > 0 {
			e.evaluatorTimeout = evaluator
		}
	}
}

func NewEngine(scenarios ScenarioSource, persona PersonaAgent, evaluator Evaluator, opts ...Option) *Engine {
	e := &Engine{
		scenarios:        scenarios,
		persona:          persona,
		evaluator:        evaluator,
		logger:           slog.Default(),
		now:              time.Now,
		personaTimeout:   DefaultPersonaTimeout,
		evaluatorTimeout: DefaultEvaluatorTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type StartInput struct {
	UserEmail  string
	UserName   string
	TeamRole   models.TeamRole
	Difficulty *models.Difficulty
}

// Start generates a scenario and opens the call with the persona's first line
func (e *Engine) Start(ctx context.Context, in StartInput) (*models.ConsultationSession, error) {
	sc, err := e.scenarios.Generate(in.TeamRole, in.Difficulty)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session := &models.ConsultationSession{
		ID:        scenario.NewID("", in.UserEmail, now, sessionIDWidth),
		UserEmail: in.UserEmail,
		UserName:  in.UserName,
		TeamRole:  in.TeamRole,
		Scenario:  *sc,
		Messages:  []models.Message{},
		StartedAt: now,
	}

	opening := e.openingLine(ctx, &session.Scenario)
	session.AddMessage(models.MessageRolePersona, opening, e.now())

	e.logger.Info("Consultation started",
		"session_id", session.ID,
		"scenario_id", sc.ID,
		"user_email", in.UserEmail,
		"category", sc.Category,
		"difficulty", sc.Difficulty)
	return session, nil
}

// openingLine never fails: a scenario line wins, then the persona agent,
// then a fixed greeting.
func (e *Engine) openingLine(ctx context.Context, sc *models.Scenario) string {
	if strings.TrimSpace(sc.OpeningLine) != "" {
		return sc.OpeningLine
	}

	reply, err := e.callPersona(ctx, prompts.OpeningHistory(sc), OpeningParams)
	if err == nil {
		return reply
	}
	e.logger.Warn("Opening line generation failed, using fallback greeting", "scenario_id", sc.ID, "error", err)
	return FallbackGreeting(sc.Persona)
}

// FallbackGreeting is the opening used when no line can be generated
func FallbackGreeting(p models.ClientPersona) string {
	return fmt.Sprintf("Hi, this is %s from %s. Do you have a minute?", p.Name, p.Company)
}

// Advance records the trainee's line and returns the persona's answer. On
// the final allowed turn the call ends and TurnLimitMessage is returned
// without contacting the persona. A failed persona call leaves the trainee
// message in place.
func (e *Engine) Advance(ctx context.Context, session *models.ConsultationSession, text string) (string, error) {
	if session.IsComplete {
		return "", fmt.Errorf("%w: session %s is complete", models.ErrInvalidState, session.ID)
	}

	session.AddMessage(models.MessageRoleTrainee, text, e.now())

	if session.IsOverLimit() {
		session.EndCall(e.now())
		e.logger.Info("Turn limit reached", "session_id", session.ID, "turns", session.TurnCount())
		return TurnLimitMessage, nil
	}

	reply, err := e.callPersona(ctx, prompts.ChatHistory(session), ReplyParams)
	if err != nil {
		e.logger.Error("Persona reply failed", "session_id", session.ID, "error", err)
		return "", err
	}
	session.AddMessage(models.MessageRolePersona, reply, e.now())
	return reply, nil
}

// Finish ends the call if needed and evaluates it. A session that already
// has a result is rejected. When the evaluation fails the session stays
// complete without a result and Finish may be retried.
func (e *Engine) Finish(ctx context.Context, session *models.ConsultationSession) (*models.ConsultationResult, error) {
	if session.Result != nil {
		return nil, fmt.Errorf("%w: session %s already evaluated", models.ErrInvalidState, session.ID)
	}
	session.EndCall(e.now())

	prompt := prompts.Evaluator(&session.Scenario, session.Messages, session.ElapsedSeconds)

	callCtx, cancel := context.WithTimeout(ctx, e.evaluatorTimeout)
	defer cancel()

	raw, err := e.evaluator.Evaluate(callCtx, prompt)
	if err != nil {
		e.logger.Error("Evaluation call failed", "session_id", session.ID, "error", err)
		return nil, fmt.Errorf("%w: evaluator: %w", models.ErrExternalCall, err)
	}

	result, err := evaluation.Parse(raw, &session.Scenario)
	if err != nil {
		e.logger.Error("Evaluation could not be parsed", "session_id", session.ID, "error", err)
		return nil, err
	}

	session.Result = result
	e.logger.Info("Consultation evaluated",
		"session_id", session.ID,
		"overall_score", result.OverallScore,
		"tier", result.Tier,
		"deal_outcome", result.DealOutcome)
	return result, nil
}

func (e *Engine) callPersona(ctx context.Context, turns []prompts.Turn, params GenerationParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.personaTimeout)
	defer cancel()

	reply, err := e.persona.Reply(callCtx, turns, params)
	if err != nil {
		return "", fmt.Errorf("%w: persona: %w", models.ErrExternalCall, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: persona returned an empty reply", models.ErrExternalCall)
	}
	return reply, nil
}
