package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/prompts"
	"github.com/Keepitcity/proof/scenario"
)

type fakePersona struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakePersona) Reply(_ context.Context, _ []prompts.Turn, _ consultation.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "Okay, what would that cost me?", nil
	}
	return f.reply, nil
}

type fakeEvaluator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, f.err
}

func (f *fakeEvaluator) set(response string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response, f.err = response, err
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const testEvaluation = `{"overall_score": 88, "category_scores": [{"category": "Empathy & Rapport", "score": 91, "feedback": "warm"}], "strengths": ["Calm"], "improvements": [], "client_satisfaction": 80, "deal_outcome": "closed", "summary": "Closed it."}`

type memScorecards struct {
	mu    sync.Mutex
	cards map[string]*models.Scorecard
}

func newMemScorecards() *memScorecards {
	return &memScorecards{cards: map[string]*models.Scorecard{}}
}

func (m *memScorecards) SaveScorecard(_ context.Context, card *models.Scorecard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[card.SessionID]; ok {
		return models.ErrAlreadyExists
	}
	m.cards[card.SessionID] = card
	return nil
}

func (m *memScorecards) GetScorecard(_ context.Context, sessionID string) (*models.Scorecard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cards[sessionID], nil
}

func (m *memScorecards) ListScorecards(_ context.Context, email string, _ int) ([]models.Scorecard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Scorecard{}
	for _, c := range m.cards {
		if c.UserEmail == email {
			out = append(out, *c)
		}
	}
	return out, nil
}

// testClock is advanced by hand
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type managerFixture struct {
	manager    *SessionManager
	persona    *fakePersona
	evaluator  *fakeEvaluator
	scorecards *memScorecards
	clock      *testClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		persona:    &fakePersona{},
		evaluator:  &fakeEvaluator{response: testEvaluation},
		scorecards: newMemScorecards(),
		clock:      newTestClock(),
	}
	engine := consultation.NewEngine(
		scenario.NewDefaultGenerator(scenario.WithClock(f.clock.Now)),
		f.persona,
		f.evaluator,
		consultation.WithClock(f.clock.Now),
	)
	f.manager = NewSessionManager(engine, 0,
		WithScorecardStore(f.scorecards),
		WithIdleTimeout(10*time.Minute),
		WithRetention(30*time.Minute),
		WithManagerClock(f.clock.Now),
	)
	t.Cleanup(f.manager.Close)
	return f
}
