package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/repository"
)

const (
	DefaultIdleTimeout   = 10 * time.Minute
	DefaultRetention     = 30 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// SessionManager is the registry of live consultations. The engine itself
// is stateless, so every engine call runs under the owning session's lock.
type SessionManager struct {
	engine      *consultation.Engine
	scorecards  repository.ScorecardStore
	idleTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	sessions map[string]*trackedSession
	mutex    sync.RWMutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type trackedSession struct {
	mu            sync.Mutex
	session       *models.ConsultationSession
	lastActivity  time.Time
	evaluatedAt   time.Time
	autoFinishRan bool
}

type SessionManagerOption func(*SessionManager)

// WithScorecardStore persists a scorecard for every evaluated session
func WithScorecardStore(store repository.ScorecardStore) SessionManagerOption {
	return func(m *SessionManager) { m.scorecards = store }
}

func WithIdleTimeout(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

func WithRetention(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.retention = d
		}
	}
}

func WithManagerClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager starts the idle sweep when sweepInterval is positive.
// Close stops it.
func NewSessionManager(engine *consultation.Engine, sweepInterval time.Duration, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		engine:      engine,
		idleTimeout: DefaultIdleTimeout,
		retention:   DefaultRetention,
		now:         time.Now,
		sessions:    make(map[string]*trackedSession),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if sweepInterval > 0 {
		go m.startSweeper(sweepInterval)
	} else {
		close(m.done)
	}
	return m
}

// Start opens a new call and returns a snapshot of it
func (m *SessionManager) Start(ctx context.Context, in consultation.StartInput) (models.ConsultationSession, error) {
	session, err := m.engine.Start(ctx, in)
	if err != nil {
		return models.ConsultationSession{}, err
	}

	m.mutex.Lock()
	m.sessions[session.ID] = &trackedSession{session: session, lastActivity: m.now()}
	m.mutex.Unlock()

	slog.Info("Session registered for timeout tracking", "session_id", session.ID, "user_email", session.UserEmail)
	return snapshot(session), nil
}

// Respond forwards one trainee line. The returned snapshot reports whether
// the call ended on this turn.
func (m *SessionManager) Respond(ctx context.Context, sessionID, text string) (string, models.ConsultationSession, error) {
	tracked, err := m.lookup(sessionID)
	if err != nil {
		return "", models.ConsultationSession{}, err
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	m.updateElapsed(tracked.session)
	reply, err := m.engine.Advance(ctx, tracked.session, text)
	tracked.lastActivity = m.now()
	m.updateElapsed(tracked.session)
	return reply, snapshot(tracked.session), err
}

// Finish evaluates the call and stores its scorecard
func (m *SessionManager) Finish(ctx context.Context, sessionID string) (*models.ConsultationResult, models.ConsultationSession, error) {
	tracked, err := m.lookup(sessionID)
	if err != nil {
		return nil, models.ConsultationSession{}, err
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	result, err := m.finishLocked(ctx, tracked)
	return result, snapshot(tracked.session), err
}

func (m *SessionManager) finishLocked(ctx context.Context, tracked *trackedSession) (*models.ConsultationResult, error) {
	m.updateElapsed(tracked.session)
	result, err := m.engine.Finish(ctx, tracked.session)
	tracked.lastActivity = m.now()
	if err != nil {
		return nil, err
	}
	m.updateElapsed(tracked.session)
	tracked.evaluatedAt = m.now()
	m.saveScorecard(ctx, tracked.session)
	return result, nil
}

// Get returns a snapshot of the session
func (m *SessionManager) Get(sessionID string) (models.ConsultationSession, error) {
	tracked, err := m.lookup(sessionID)
	if err != nil {
		return models.ConsultationSession{}, err
	}
	tracked.mu.Lock()
	defer tracked.mu.Unlock()
	return snapshot(tracked.session), nil
}

// Len reports how many sessions are tracked
func (m *SessionManager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) lookup(sessionID string) (*trackedSession, error) {
	m.mutex.RLock()
	tracked, exists := m.sessions[sessionID]
	m.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return tracked, nil
}

// updateElapsed measures wall time from the start to now, or to the end of
// the call once it is complete.
func (m *SessionManager) updateElapsed(s *models.ConsultationSession) {
	end := m.now()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	if elapsed := end.Sub(s.StartedAt).Seconds(); elapsed > 0 {
		s.ElapsedSeconds = elapsed
	}
}

func (m *SessionManager) saveScorecard(ctx context.Context, session *models.ConsultationSession) {
	if m.scorecards == nil {
		return
	}
	card := models.NewScorecard(session)
	if card == nil {
		return
	}
	if err := m.scorecards.SaveScorecard(ctx, card); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return
		}
		slog.Error("Failed to save scorecard", "error", err, "session_id", session.ID)
	}
}

func (m *SessionManager) startSweeper(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Sweep auto-evaluates idle calls that have at least one trainee turn and
// evicts sessions past their retention. An idle call with no trainee turn
// is dropped without evaluation.
func (m *SessionManager) Sweep(ctx context.Context) {
	m.mutex.RLock()
	candidates := make(map[string]*trackedSession, len(m.sessions))
	for id, tracked := range m.sessions {
		candidates[id] = tracked
	}
	m.mutex.RUnlock()

	for id, tracked := range candidates {
		if m.sweepOne(ctx, tracked) {
			m.mutex.Lock()
			delete(m.sessions, id)
			m.mutex.Unlock()
			slog.Info("Session removed from timeout tracking", "session_id", id)
		}
	}
}

// sweepOne reports whether the session should be evicted
func (m *SessionManager) sweepOne(ctx context.Context, tracked *trackedSession) bool {
	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	now := m.now()
	session := tracked.session
	idle := now.Sub(tracked.lastActivity)

	if session.Result != nil {
		return now.Sub(tracked.evaluatedAt) > m.retention
	}
	if idle <= m.idleTimeout {
		return false
	}
	if session.TurnCount() == 0 {
		slog.Info("Idle session had no trainee turns, discarding", "session_id", session.ID, "inactive_duration", idle)
		return true
	}
	if !tracked.autoFinishRan {
		tracked.autoFinishRan = true
		slog.Info("Session timed out, evaluating", "session_id", session.ID, "inactive_duration", idle)
		if _, err := m.finishLocked(ctx, tracked); err != nil {
			slog.Error("Failed to evaluate timed out session", "error", err, "session_id", session.ID)
		}
		return false
	}
	// evaluation failed on an earlier sweep; keep it for a manual retry until retention runs out
	return idle > m.idleTimeout+m.retention
}

// Close stops the sweeper. Tracked sessions are discarded with the manager.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func snapshot(s *models.ConsultationSession) models.ConsultationSession {
	out := *s
	out.Messages = make([]models.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}
	if s.Result != nil {
		result := *s.Result
		out.Result = &result
	}
	return out
}
