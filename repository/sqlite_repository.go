package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Keepitcity/proof/models"
)

// SQLiteRepository is the single-file store for local and CLI use
type SQLiteRepository struct {
	db         *sql.DB
	teamDomain string
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (or creates) the database at path and migrates it
func NewSQLiteRepository(path, teamDomain string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one writer keeps sqlite free of SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db, teamDomain: teamDomain}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			email          TEXT    UNIQUE NOT NULL,
			name           TEXT    NOT NULL DEFAULT '',
			picture_url    TEXT    NOT NULL DEFAULT '',
			is_team_member INTEGER NOT NULL DEFAULT 0,
			is_waitlist    INTEGER NOT NULL DEFAULT 0,
			first_login    TEXT    NOT NULL,
			last_login     TEXT    NOT NULL,
			login_count    INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS user_stats (
			user_id                  INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			total_videos_analyzed    INTEGER NOT NULL DEFAULT 0,
			total_photos_analyzed    INTEGER NOT NULL DEFAULT 0,
			total_clips_sorted       INTEGER NOT NULL DEFAULT 0,
			total_issues_found       INTEGER NOT NULL DEFAULT 0,
			total_time_saved_seconds INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS waitlist (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			email       TEXT UNIQUE NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			signup_date TEXT NOT NULL,
			notes       TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS scorecards (
			id                  TEXT PRIMARY KEY,
			session_id          TEXT UNIQUE NOT NULL,
			user_email          TEXT NOT NULL,
			scenario_id         TEXT NOT NULL,
			scenario_title      TEXT NOT NULL DEFAULT '',
			category            TEXT NOT NULL DEFAULT '',
			team_role           TEXT NOT NULL DEFAULT '',
			difficulty          TEXT NOT NULL DEFAULT '',
			overall_score       INTEGER NOT NULL,
			tier                TEXT NOT NULL,
			tier_label          TEXT NOT NULL DEFAULT '',
			client_satisfaction INTEGER NOT NULL DEFAULT 0,
			deal_outcome        TEXT NOT NULL DEFAULT '',
			summary             TEXT NOT NULL DEFAULT '',
			strengths           TEXT NOT NULL DEFAULT '[]',
			improvements        TEXT NOT NULL DEFAULT '[]',
			turn_count          INTEGER NOT NULL DEFAULT 0,
			duration_seconds    REAL NOT NULL DEFAULT 0,
			completed_at        TEXT NOT NULL,
			created_at          TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scorecards_user ON scorecards(user_email, completed_at);

		CREATE TABLE IF NOT EXISTS scorecard_categories (
			id           TEXT PRIMARY KEY,
			scorecard_id TEXT NOT NULL REFERENCES scorecards(id) ON DELETE CASCADE,
			category     TEXT NOT NULL,
			score        INTEGER NOT NULL,
			feedback     TEXT NOT NULL DEFAULT '',
			position     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scorecard_categories_card ON scorecard_categories(scorecard_id);
	`)
	return err
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, name, picture_url, is_team_member, is_waitlist, first_login, last_login, login_count`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var first, last string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PictureURL, &u.IsTeamMember, &u.IsWaitlist, &first, &last, &u.LoginCount); err != nil {
		return nil, err
	}
	u.FirstLogin = parseTime(first)
	u.LastLogin = parseTime(last)
	return &u, nil
}

// User operations
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, error) {
	email = normalizeEmail(email)
	now := formatTime(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (email, name, picture_url, is_team_member, first_login, last_login, login_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(email) DO NOTHING`,
		email, name, pictureURL, models.IsTeamEmail(email, r.teamDomain), now, now)
	if err != nil {
		slog.Error("Failed to create user", "error", err, "email", email)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrAlreadyExists)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_stats (user_id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("failed to create user stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}

	slog.Info("User created", "user_id", id, "email", email)
	return r.GetUserByEmail(ctx, email)
}

func (r *SQLiteRepository) UpdateUserLogin(ctx context.Context, email, name, pictureURL string) (*models.User, error) {
	email = normalizeEmail(email)
	now := formatTime(time.Now())

	var res sql.Result
	var err error
	if name != "" && pictureURL != "" {
		res, err = r.db.ExecContext(ctx, `
			UPDATE users SET last_login = ?, login_count = login_count + 1, name = ?, picture_url = ?
			WHERE email = ?`, now, name, pictureURL, email)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE users SET last_login = ?, login_count = login_count + 1
			WHERE email = ?`, now, email)
	}
	if err != nil {
		slog.Error("Failed to update user login", "error", err, "email", email)
		return nil, fmt.Errorf("failed to update user login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	return r.GetUserByEmail(ctx, email)
}

func (r *SQLiteRepository) GetOrCreateUser(ctx context.Context, email, name, pictureURL string) (*models.User, bool, error) {
	return getOrCreateUser(ctx, r, email, name, pictureURL)
}

// Waitlist operations
func (r *SQLiteRepository) AddToWaitlist(ctx context.Context, email, name, notes string) (bool, error) {
	email = normalizeEmail(email)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO waitlist (email, name, signup_date, notes) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		email, name, formatTime(time.Now()), notes)
	if err != nil {
		slog.Error("Failed to add to waitlist", "error", err, "email", email)
		return false, fmt.Errorf("failed to add to waitlist: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLiteRepository) IsOnWaitlist(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM waitlist WHERE email = ?`, normalizeEmail(email)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check waitlist: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) GetWaitlist(ctx context.Context) ([]models.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, name, signup_date, notes FROM waitlist ORDER BY signup_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WaitlistEntry{}
	for rows.Next() {
		var e models.WaitlistEntry
		var signup string
		if err := rows.Scan(&e.ID, &e.Email, &e.Name, &signup, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist: %w", err)
		}
		e.SignupDate = parseTime(signup)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats operations
func (r *SQLiteRepository) GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	var s models.UserStats
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, total_videos_analyzed, total_photos_analyzed, total_clips_sorted,
		       total_issues_found, total_time_saved_seconds
		FROM user_stats WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.TotalVideosAnalyzed, &s.TotalPhotosAnalyzed, &s.TotalClipsSorted, &s.TotalIssuesFound, &s.TotalTimeSavedSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &s, nil
}

// IncrementUserStat ignores unknown stat names. The name is checked against
// the fixed column set before it reaches the query.
func (r *SQLiteRepository) IncrementUserStat(ctx context.Context, userID int64, stat string, amount int64) error {
	if !models.IsStatName(stat) {
		slog.Warn("Ignoring unknown stat", "stat", stat, "user_id", userID)
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE user_stats SET `+stat+` = `+stat+` + ? WHERE user_id = ?`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", stat, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateUserStats(ctx context.Context, userID int64, delta models.UserStats) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_stats
		SET total_videos_analyzed = total_videos_analyzed + ?,
		    total_photos_analyzed = total_photos_analyzed + ?,
		    total_clips_sorted = total_clips_sorted + ?,
		    total_issues_found = total_issues_found + ?,
		    total_time_saved_seconds = total_time_saved_seconds + ?
		WHERE user_id = ?`,
		delta.TotalVideosAnalyzed, delta.TotalPhotosAnalyzed, delta.TotalClipsSorted,
		delta.TotalIssuesFound, delta.TotalTimeSavedSeconds, userID)
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTotalUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetTotalTeamMembers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_team_member = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetAggregateStats(ctx context.Context) (*models.AggregateStats, error) {
	var a models.AggregateStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_videos_analyzed), 0), COALESCE(SUM(total_photos_analyzed), 0),
		       COALESCE(SUM(total_clips_sorted), 0), COALESCE(SUM(total_issues_found), 0),
		       COALESCE(SUM(total_time_saved_seconds), 0)
		FROM user_stats`).
		Scan(&a.TotalVideos, &a.TotalPhotos, &a.TotalClips, &a.TotalIssues, &a.TotalTimeSaved)
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate stats: %w", err)
	}
	return &a, nil
}

// Scorecard operations
func (r *SQLiteRepository) SaveScorecard(ctx context.Context, card *models.Scorecard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	card.UserEmail = normalizeEmail(card.UserEmail)
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	strengths, err := json.Marshal(nonNil(card.Strengths))
	if err != nil {
		return err
	}
	improvements, err := json.Marshal(nonNil(card.Improvements))
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scorecards (id, session_id, user_email, scenario_id, scenario_title, category, team_role,
			difficulty, overall_score, tier, tier_label, client_satisfaction, deal_outcome, summary,
			strengths, improvements, turn_count, duration_seconds, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		card.ID, card.SessionID, card.UserEmail, card.ScenarioID, card.ScenarioTitle, card.Category, card.TeamRole,
		card.Difficulty, card.OverallScore, card.Tier, card.TierLabel, card.ClientSatisfaction, card.DealOutcome, card.Summary,
		string(strengths), string(improvements), card.TurnCount, card.DurationSeconds,
		formatTime(card.CompletedAt), formatTime(card.CreatedAt))
	if err != nil {
		slog.Error("Failed to save scorecard", "error", err, "session_id", card.SessionID)
		return fmt.Errorf("failed to save scorecard: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scorecard for session %s: %w", card.SessionID, models.ErrAlreadyExists)
	}

	for i := range card.Categories {
		c := &card.Categories[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.ScorecardID = card.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scorecard_categories (id, scorecard_id, category, score, feedback, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.ScorecardID, c.Category, c.Score, c.Feedback, c.Position); err != nil {
			return fmt.Errorf("failed to save scorecard category: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scorecard: %w", err)
	}
	slog.Info("Scorecard saved", "scorecard_id", card.ID, "session_id", card.SessionID, "user_email", card.UserEmail)
	return nil
}

const scorecardColumns = `id, session_id, user_email, scenario_id, scenario_title, category, team_role, difficulty,
	overall_score, tier, tier_label, client_satisfaction, deal_outcome, summary, strengths, improvements,
	turn_count, duration_seconds, completed_at, created_at`

func scanScorecard(row rowScanner) (*models.Scorecard, error) {
	var c models.Scorecard
	var strengths, improvements, completed, created string
	err := row.Scan(&c.ID, &c.SessionID, &c.UserEmail, &c.ScenarioID, &c.ScenarioTitle, &c.Category, &c.TeamRole,
		&c.Difficulty, &c.OverallScore, &c.Tier, &c.TierLabel, &c.ClientSatisfaction, &c.DealOutcome, &c.Summary,
		&strengths, &improvements, &c.TurnCount, &c.DurationSeconds, &completed, &created)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(strengths), &c.Strengths); err != nil {
		return nil, fmt.Errorf("bad strengths column: %w", err)
	}
	if err := json.Unmarshal([]byte(improvements), &c.Improvements); err != nil {
		return nil, fmt.Errorf("bad improvements column: %w", err)
	}
	c.CompletedAt = parseTime(completed)
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func (r *SQLiteRepository) GetScorecard(ctx context.Context, sessionID string) (*models.Scorecard, error) {
	card, err := scanScorecard(r.db.QueryRowContext(ctx, `SELECT `+scorecardColumns+` FROM scorecards WHERE session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scorecard: %w", err)
	}
	if card.Categories, err = r.scorecardCategories(ctx, card.ID); err != nil {
		return nil, err
	}
	return card, nil
}

func (r *SQLiteRepository) ListScorecards(ctx context.Context, email string, limit int) ([]models.Scorecard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scorecardColumns+` FROM scorecards
		WHERE user_email = ? ORDER BY completed_at DESC LIMIT ?`, normalizeEmail(email), scorecardLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list scorecards: %w", err)
	}
	cards := []models.Scorecard{}
	for rows.Next() {
		card, err := scanScorecard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan scorecard: %w", err)
		}
		cards = append(cards, *card)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// categories are read after the outer rows close; the pool has one connection
	for i := range cards {
		if cards[i].Categories, err = r.scorecardCategories(ctx, cards[i].ID); err != nil {
			return nil, err
		}
	}
	return cards, nil
}

func (r *SQLiteRepository) scorecardCategories(ctx context.Context, scorecardID string) ([]models.ScorecardCategory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, scorecard_id, category, score, feedback, position
		FROM scorecard_categories WHERE scorecard_id = ? ORDER BY position`, scorecardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scorecard categories: %w", err)
	}
	defer rows.Close()

	var out []models.ScorecardCategory
	for rows.Next() {
		var c models.ScorecardCategory
		if err := rows.Scan(&c.ID, &c.ScorecardID, &c.Category, &c.Score, &c.Feedback, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
