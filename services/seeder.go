package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/repository"
)

// DatabaseSeeder loads demo trainees and waitlist entries for local use
type DatabaseSeeder struct {
	store repository.UserStore
}

func NewDatabaseSeeder(store repository.UserStore) *DatabaseSeeder {
	return &DatabaseSeeder{store: store}
}

type seedUser struct {
	Email string
	Name  string
	Stats models.UserStats
}

var seedUsers = []seedUser{
	{Email: "demo.pm@aerialcanvas.com", Name: "Demo PM", Stats: models.UserStats{TotalVideosAnalyzed: 4, TotalPhotosAnalyzed: 120, TotalIssuesFound: 9, TotalTimeSavedSeconds: 5400}},
	{Email: "demo.sales@aerialcanvas.com", Name: "Demo Sales", Stats: models.UserStats{TotalClipsSorted: 30, TotalTimeSavedSeconds: 1800}},
	{Email: "guest@example.com", Name: "Guest Agent"},
}

var seedWaitlist = []models.WaitlistEntry{
	{Email: "broker@example.com", Name: "Broker Bree", Notes: "Asked about team pricing"},
	{Email: "listing.coordinator@example.com", Name: "Listing Coordinator"},
}

// SeedDatabase is idempotent: existing users and waitlist entries are left alone
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	var errs []error
	for _, u := range seedUsers {
		if err := s.seedUser(ctx, u); err != nil {
			slog.Error("Failed to seed user", "email", u.Email, "error", err)
			errs = append(errs, err)
		}
	}

	for _, entry := range seedWaitlist {
		added, err := s.store.AddToWaitlist(ctx, entry.Email, entry.Name, entry.Notes)
		if err != nil {
			slog.Error("Failed to seed waitlist entry", "email", entry.Email, "error", err)
			errs = append(errs, err)
			continue
		}
		if added {
			slog.Info("Added waitlist entry", "email", entry.Email)
		}
	}

	if len(errs) == 0 {
		slog.Info("Database seeding completed successfully")
	}
	return errors.Join(errs...)
}

func (s *DatabaseSeeder) seedUser(ctx context.Context, u seedUser) error {
	existing, err := s.store.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", u.Email, err)
	}
	if existing != nil {
		slog.Info("User already exists, skipping", "email", u.Email)
		return nil
	}

	user, err := s.store.CreateUser(ctx, u.Email, u.Name, "")
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Email, err)
	}
	if err := s.store.UpdateUserStats(ctx, user.ID, u.Stats); err != nil {
		return fmt.Errorf("failed to seed stats for %s: %w", u.Email, err)
	}

	slog.Info("Created user", "email", u.Email, "is_team_member", user.IsTeamMember)
	return nil
}
