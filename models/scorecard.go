package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scorecard stores the evaluated outcome of a finished consultation.
// The transcript is not kept.
type Scorecard struct {
	ID                 string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID          string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_id"`
	UserEmail          string         `gorm:"not null;index" json:"user_email"`
	ScenarioID         string         `gorm:"type:varchar(64);not null" json:"scenario_id"`
	ScenarioTitle      string         `gorm:"size:255" json:"scenario_title"`
	Category           string         `gorm:"size:100" json:"category"`
	TeamRole           string         `gorm:"size:50" json:"team_role"`
	Difficulty         string         `gorm:"size:20" json:"difficulty"`
	OverallScore       int            `gorm:"not null" json:"overall_score"` // 0 to 100
	Tier               string         `gorm:"size:4;not null" json:"tier"`
	TierLabel          string         `gorm:"size:50" json:"tier_label"`
	ClientSatisfaction int            `json:"client_satisfaction"`
	DealOutcome        string         `gorm:"size:30" json:"deal_outcome"`
	Summary            string         `gorm:"type:text" json:"summary"`
	Strengths          []string       `gorm:"serializer:json" json:"strengths"`
	Improvements       []string       `gorm:"serializer:json" json:"improvements"`
	TurnCount          int            `json:"turn_count"`
	DurationSeconds    float64        `json:"duration_seconds"`
	CompletedAt        time.Time      `gorm:"not null;index" json:"completed_at"`
	CreatedAt          time.Time      `json:"created_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Categories []ScorecardCategory `gorm:"foreignKey:ScorecardID;constraint:OnDelete:CASCADE" json:"categories,omitempty"`
}

// ScorecardCategory is one graded skill dimension of a scorecard
type ScorecardCategory struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ScorecardID string `gorm:"type:varchar(36);not null;index" json:"scorecard_id"`
	Category    string `gorm:"size:50;not null" json:"category"`
	Score       int    `gorm:"not null" json:"score"`
	Feedback    string `gorm:"type:text" json:"feedback"`
	Position    int    `gorm:"not null" json:"position"`
}

// BeforeCreate sets the ID here rather than in the database so the same rows
// work on postgres and sqlite.
func (s *Scorecard) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (c *ScorecardCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// NewScorecard summarises an evaluated session. It returns nil when the
// session has no result yet.
func NewScorecard(session *ConsultationSession) *Scorecard {
	if session == nil || session.Result == nil {
		return nil
	}
	result := session.Result
	completedAt := time.Now()
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}

	card := &Scorecard{
		ID:                 uuid.NewString(),
		SessionID:          session.ID,
		UserEmail:          session.UserEmail,
		ScenarioID:         session.Scenario.ID,
		ScenarioTitle:      session.Scenario.Title,
		Category:           string(session.Scenario.Category),
		TeamRole:           string(session.TeamRole),
		Difficulty:         string(session.Scenario.Difficulty),
		OverallScore:       result.OverallScore,
		Tier:               result.Tier,
		TierLabel:          result.TierLabel,
		ClientSatisfaction: result.ClientSatisfaction,
		DealOutcome:        string(result.DealOutcome),
		Summary:            result.Summary,
		Strengths:          append([]string{}, result.Strengths...),
		Improvements:       append([]string{}, result.Improvements...),
		TurnCount:          session.TurnCount(),
		DurationSeconds:    session.ElapsedSeconds,
		CompletedAt:        completedAt,
	}
	for i, cs := range result.CategoryScores {
		card.Categories = append(card.Categories, ScorecardCategory{
			ID:          uuid.NewString(),
			ScorecardID: card.ID,
			Category:    string(cs.Category),
			Score:       cs.Score,
			Feedback:    cs.Feedback,
			Position:    i,
		})
	}
	return card
}
