package models

import (
	"strings"
	"time"
)

// DefaultTeamDomain marks team members by email
const DefaultTeamDomain = "aerialcanvas.com"

// IsTeamEmail reports whether email belongs to domain, case-insensitively
func IsTeamEmail(email, domain string) bool {
	if domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), "@"+strings.ToLower(domain))
}

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name,omitempty"`
	PictureURL   string    `gorm:"size:500" json:"picture_url,omitempty"`
	IsTeamMember bool      `gorm:"default:false" json:"is_team_member"`
	IsWaitlist   bool      `gorm:"default:false" json:"is_waitlist"`
	FirstLogin   time.Time `json:"first_login"`
	LastLogin    time.Time `json:"last_login"`
	LoginCount   int       `gorm:"default:1" json:"login_count"`

	// Relationships
	Stats *UserStats `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"stats,omitempty"`
}

// UserStats holds monotonically increasing usage counters for one user
type UserStats struct {
	UserID                int64 `gorm:"primaryKey" json:"user_id"`
	TotalVideosAnalyzed   int64 `gorm:"default:0" json:"total_videos_analyzed"`
	TotalPhotosAnalyzed   int64 `gorm:"default:0" json:"total_photos_analyzed"`
	TotalClipsSorted      int64 `gorm:"default:0" json:"total_clips_sorted"`
	TotalIssuesFound      int64 `gorm:"default:0" json:"total_issues_found"`
	TotalTimeSavedSeconds int64 `gorm:"default:0" json:"total_time_saved_seconds"`
}

// Stat names accepted by IncrementUserStat and UpdateUserStats. They double as column names.
const (
	StatVideosAnalyzed   = "total_videos_analyzed"
	StatPhotosAnalyzed   = "total_photos_analyzed"
	StatClipsSorted      = "total_clips_sorted"
	StatIssuesFound      = "total_issues_found"
	StatTimeSavedSeconds = "total_time_saved_seconds"
)

var statColumns = map[string]bool{
	StatVideosAnalyzed:   true,
	StatPhotosAnalyzed:   true,
	StatClipsSorted:      true,
	StatIssuesFound:      true,
	StatTimeSavedSeconds: true,
}

// IsStatName reports whether name is one of the known counters
func IsStatName(name string) bool {
	return statColumns[name]
}

// AggregateStats sums the counters across every user
type AggregateStats struct {
	TotalVideos    int64 `json:"total_videos"`
	TotalPhotos    int64 `json:"total_photos"`
	TotalClips     int64 `json:"total_clips"`
	TotalIssues    int64 `json:"total_issues"`
	TotalTimeSaved int64 `json:"total_time_saved_seconds"`
}

type WaitlistEntry struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	Name       string    `gorm:"size:255" json:"name,omitempty"`
	SignupDate time.Time `gorm:"index" json:"signup_date"`
	Notes      string    `gorm:"type:text" json:"notes,omitempty"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist"
}
