package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Keepitcity/proof/models"
)

const pgUniqueViolation = "23505"

// GORMRepository is the postgres store
type GORMRepository struct {
	db         *gorm.DB
	teamDomain string
}

var _ Store = (*GORMRepository)(nil)

func NewGORMRepository(db *gorm.DB, teamDomain string) *GORMRepository {
	return &GORMRepository{db: db, teamDomain: teamDomain}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.UserStats{},
		&models.WaitlistEntry{},
		&models.Scorecard{},
		&models.ScorecardCategory{},
	)
}

func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GORMRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// User operations
func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts the user and its stats row in one transaction
func (r *GORMRepository) CreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		Email:        normalizeEmail(email),
		Name:         name,
		PictureURL:   pictureURL,
		IsTeamMember: models.IsTeamEmail(email, r.teamDomain),
		FirstLogin:   now,
		LastLogin:    now,
		LoginCount:   1,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserStats{UserID: user.ID}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", user.Email, models.ErrAlreadyExists)
		}
		slog.Error("Failed to create user", "error", err, "email", user.Email)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email, "team_member", user.IsTeamMember)
	return user, nil
}

// UpdateUserLogin bumps the login count. Name and picture are only replaced
// when both are given.
func (r *GORMRepository) UpdateUserLogin(ctx context.Context, email, name, pictureURL string) (*models.User, error) {
	updates := map[string]interface{}{
		"last_login":  time.Now().UTC(),
		"login_count": gorm.Expr("login_count + 1"),
	}
	if name != "" && pictureURL != "" {
		updates["name"] = name
		updates["picture_url"] = pictureURL
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email)).Updates(updates)
	if res.Error != nil {
		slog.Error("Failed to update user login", "error", res.Error, "email", email)
		return nil, fmt.Errorf("failed to update user login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	return r.GetUserByEmail(ctx, email)
}

func (r *GORMRepository) GetOrCreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, bool, error) {
	return getOrCreateUser(ctx, r, email, name, pictureURL)
}

// Waitlist operations
func (r *GORMRepository) AddToWaitlist(ctx context.Context, email, name, notes string) (bool, error) {
	entry := &models.WaitlistEntry{
		Email:      normalizeEmail(email),
		Name:       name,
		Notes:      notes,
		SignupDate: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		slog.Error("Failed to add to waitlist", "error", err, "email", entry.Email)
		return false, fmt.Errorf("failed to add to waitlist: %w", err)
	}
	slog.Info("Added to waitlist", "email", entry.Email)
	return true, nil
}

func (r *GORMRepository) IsOnWaitlist(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error; err != nil {
		slog.Error("Failed to check waitlist", "error", err, "email", email)
		return false, fmt.Errorf("failed to check waitlist: %w", err)
	}
	return count > 0, nil
}

func (r *GORMRepository) GetWaitlist(ctx context.Context) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	if err := r.db.WithContext(ctx).Order("signup_date DESC").Order("id DESC").Find(&entries).Error; err != nil {
		slog.Error("Failed to get waitlist", "error", err)
		return nil, fmt.Errorf("failed to get waitlist: %w", err)
	}
	return entries, nil
}

// Stats operations
func (r *GORMRepository) GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	var stats models.UserStats
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user stats", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

// IncrementUserStat ignores unknown stat names
func (r *GORMRepository) IncrementUserStat(ctx context.Context, userID int64, stat string, amount int64) error {
	if !models.IsStatName(stat) {
		slog.Warn("Ignoring unknown stat", "stat", stat, "user_id", userID)
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.UserStats{}).
		Where("user_id = ?", userID).
		Update(stat, gorm.Expr(stat+" + ?", amount)).Error
	if err != nil {
		slog.Error("Failed to increment user stat", "error", err, "user_id", userID, "stat", stat)
		return fmt.Errorf("failed to increment %s: %w", stat, err)
	}
	return nil
}

// UpdateUserStats adds every counter in delta at once
func (r *GORMRepository) UpdateUserStats(ctx context.Context, userID int64, delta models.UserStats) error {
	err := r.db.WithContext(ctx).Model(&models.UserStats{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			models.StatVideosAnalyzed:   gorm.Expr(models.StatVideosAnalyzed+" + ?", delta.TotalVideosAnalyzed),
			models.StatPhotosAnalyzed:   gorm.Expr(models.StatPhotosAnalyzed+" + ?", delta.TotalPhotosAnalyzed),
			models.StatClipsSorted:      gorm.Expr(models.StatClipsSorted+" + ?", delta.TotalClipsSorted),
			models.StatIssuesFound:      gorm.Expr(models.StatIssuesFound+" + ?", delta.TotalIssuesFound),
			models.StatTimeSavedSeconds: gorm.Expr(models.StatTimeSavedSeconds+" + ?", delta.TotalTimeSavedSeconds),
		}).Error
	if err != nil {
		slog.Error("Failed to update user stats", "error", err, "user_id", userID)
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

func (r *GORMRepository) GetTotalUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *GORMRepository) GetTotalTeamMembers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_team_member = ?", true).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}

func (r *GORMRepository) GetAggregateStats(ctx context.Context) (*models.AggregateStats, error) {
	var agg models.AggregateStats
	err := r.db.WithContext(ctx).Model(&models.UserStats{}).Select(
		"COALESCE(SUM(total_videos_analyzed), 0) AS total_videos, " +
			"COALESCE(SUM(total_photos_analyzed), 0) AS total_photos, " +
			"COALESCE(SUM(total_clips_sorted), 0) AS total_clips, " +
			"COALESCE(SUM(total_issues_found), 0) AS total_issues, " +
			"COALESCE(SUM(total_time_saved_seconds), 0) AS total_time_saved",
	).Scan(&agg).Error
	if err != nil {
		slog.Error("Failed to get aggregate stats", "error", err)
		return nil, fmt.Errorf("failed to get aggregate stats: %w", err)
	}
	return &agg, nil
}

// Scorecard operations
func (r *GORMRepository) SaveScorecard(ctx context.Context, card *models.Scorecard) error {
	card.UserEmail = normalizeEmail(card.UserEmail)
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("scorecard for session %s: %w", card.SessionID, models.ErrAlreadyExists)
		}
		slog.Error("Failed to save scorecard", "error", err, "session_id", card.SessionID)
		return fmt.Errorf("failed to save scorecard: %w", err)
	}
	slog.Info("Scorecard saved", "scorecard_id", card.ID, "session_id", card.SessionID, "user_email", card.UserEmail)
	return nil
}

func (r *GORMRepository) GetScorecard(ctx context.Context, sessionID string) (*models.Scorecard, error) {
	var card models.Scorecard
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get scorecard", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get scorecard: %w", err)
	}
	return &card, nil
}

// ListScorecards returns a user's scorecards, newest first
func (r *GORMRepository) ListScorecards(ctx context.Context, email string, limit int) ([]models.Scorecard, error) {
	var cards []models.Scorecard
	err := r.db.WithContext(ctx).
		Where("user_email = ?", normalizeEmail(email)).
		Order("completed_at DESC").
		Limit(scorecardLimit(limit)).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Find(&cards).Error
	if err != nil {
		slog.Error("Failed to list scorecards", "error", err, "user_email", email)
		return nil, fmt.Errorf("failed to list scorecards: %w", err)
	}
	return cards, nil
}
