package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Keepitcity/proof/models"
)

// UserStore keeps trainees, the waitlist and per-user usage counters.
// Lookups return nil, nil when nothing matches.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, error)
	UpdateUserLogin(ctx context.Context, email, name, pictureURL string) (*models.User, error)
	GetOrCreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, bool, error)

	AddToWaitlist(ctx context.Context, email, name, notes string) (bool, error)
	IsOnWaitlist(ctx context.Context, email string) (bool, error)
	GetWaitlist(ctx context.Context) ([]models.WaitlistEntry, error)

	GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error)
	IncrementUserStat(ctx context.Context, userID int64, stat string, amount int64) error
	UpdateUserStats(ctx context.Context, userID int64, delta models.UserStats) error

	GetTotalUsers(ctx context.Context) (int64, error)
	GetTotalTeamMembers(ctx context.Context) (int64, error)
	GetAggregateStats(ctx context.Context) (*models.AggregateStats, error)
}

// ScorecardStore keeps evaluated consultations
type ScorecardStore interface {
	SaveScorecard(ctx context.Context, card *models.Scorecard) error
	GetScorecard(ctx context.Context, sessionID string) (*models.Scorecard, error)
	ListScorecards(ctx context.Context, email string, limit int) ([]models.Scorecard, error)
}

type Store interface {
	UserStore
	ScorecardStore
	Ping(ctx context.Context) error
	Close() error
}

// DefaultScorecardLimit caps ListScorecards when limit is not positive
const DefaultScorecardLimit = 50

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// getOrCreateUser is shared by the store implementations: an existing user
// gets a login recorded, anyone else is created with a stats row.
func getOrCreateUser(ctx context.Context, s UserStore, email, name, pictureURL string) (*models.User, bool, error) {
	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		user, err := s.UpdateUserLogin(ctx, email, name, pictureURL)
		return user, false, err
	}

	user, err := s.CreateUser(ctx, email, name, pictureURL)
	if errors.Is(err, models.ErrAlreadyExists) {
		// lost a race with a concurrent first login
		user, err = s.UpdateUserLogin(ctx, email, name, pictureURL)
		return user, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	return user, true, nil
}

func scorecardLimit(limit int) int {
	if limit <= 0 {
		return DefaultScorecardLimit
	}
	return limit
}
