package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTeamRole(t *testing.T) {
	tests := []struct {
		in       string
		expected TeamRole
		wantErr  bool
	}{
		{in: "pm", expected: RoleProjectManager},
		{in: "Project Manager", expected: RoleProjectManager},
		{in: " SALES ", expected: RoleSales},
		{in: "marketing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			role, err := ParseTeamRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, role)
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("hArD")
	require.NoError(t, err)
	assert.Equal(t, DifficultyHard, d)

	_, err = ParseDifficulty("extreme")
	assert.Error(t, err)
}

func TestScoreCategoryUnmarshal(t *testing.T) {
	var got []struct {
		Category ScoreCategory `json:"category"`
	}
	raw := `[{"category":"Efficiency"},{"category":"Foo Bar"},{"category":"efficiency"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Len(t, got, 3)
	assert.Equal(t, ScoreEfficiency, got[0].Category)
	assert.Equal(t, ScoreCategoryUnknown, got[1].Category)
	assert.Equal(t, ScoreCategoryUnknown, got[2].Category, "labels match exactly")
}

func TestDealOutcomeUnmarshal(t *testing.T) {
	tests := map[string]DealOutcome{
		"closed":           DealClosed,
		"LOST":             DealLost,
		"follow-up needed": DealFollowUpNeeded,
		"Follow up needed": DealFollowUpNeeded,
		"followup needed":  DealFollowUpNeeded,
		"maybe":            DealFollowUpNeeded,
	}
	for in, expected := range tests {
		var o DealOutcome
		require.NoError(t, o.UnmarshalText([]byte(in)))
		assert.Equal(t, expected, o, in)
	}
}

func TestSessionLifecycle(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &ConsultationSession{
		ID:        "abc",
		Scenario:  Scenario{MaxTurns: 2},
		StartedAt: start,
	}
	assert.Equal(t, SessionCreated, s.State())

	s.AddMessage(MessageRolePersona, "hello", time.Time{})
	assert.Equal(t, SessionActive, s.State())
	assert.False(t, s.Messages[0].Timestamp.IsZero())
	assert.Equal(t, 0, s.TurnCount())

	s.AddMessage(MessageRoleTrainee, "hi", start)
	s.AddMessage(MessageRolePersona, "so", start)
	assert.False(t, s.IsOverLimit())
	s.AddMessage(MessageRoleTrainee, "ok", start)
	assert.Equal(t, 2, s.TurnCount())
	assert.True(t, s.IsOverLimit())

	first := start.Add(time.Minute)
	s.EndCall(first)
	s.EndCall(first.Add(time.Hour))
	assert.True(t, s.IsComplete)
	assert.Equal(t, SessionComplete, s.State())
	assert.Equal(t, first, *s.CompletedAt)
}

func TestScenarioPublicHidesGoal(t *testing.T) {
	s := Scenario{
		ID:              "random_1",
		Persona:         ClientPersona{Name: "Sarah Chen", HiddenGoal: "wants a discount"},
		SuccessCriteria: []string{"find the goal"},
	}
	pub := s.Public()
	assert.Empty(t, pub.Persona.HiddenGoal)
	assert.Empty(t, pub.SuccessCriteria)
	assert.Equal(t, "wants a discount", s.Persona.HiddenGoal, "original untouched")

	body, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "wants a discount")
}

func TestNewScorecard(t *testing.T) {
	done := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	s := &ConsultationSession{
		ID:        "sess1",
		UserEmail: "a@b.com",
		TeamRole:  RoleSales,
		Scenario: Scenario{
			ID: "random_x", Title: "The Cold Lead", Category: CategoryNewClientInquiry,
			Difficulty: DifficultyMedium, MaxTurns: 20,
		},
		ElapsedSeconds: 300,
	}
	assert.Nil(t, NewScorecard(s))

	s.AddMessage(MessageRoleTrainee, "hi", done)
	s.EndCall(done)
	s.Result = &ConsultationResult{
		OverallScore: 82, Tier: "A", TierLabel: "Strong Performer",
		CategoryScores: []CategoryScore{
			{Category: ScoreCommunication, Score: 90, Feedback: "clear"},
			{Category: ScoreClosing, Score: 70},
		},
		Strengths:   []string{"listening"},
		DealOutcome: DealClosed,
	}

	card := NewScorecard(s)
	require.NotNil(t, card)
	assert.Equal(t, "sess1", card.SessionID)
	assert.Equal(t, "Sales", card.TeamRole)
	assert.Equal(t, "closed", card.DealOutcome)
	assert.Equal(t, 1, card.TurnCount)
	assert.Equal(t, done, card.CompletedAt)
	require.Len(t, card.Categories, 2)
	assert.Equal(t, card.ID, card.Categories[1].ScorecardID)
	assert.Equal(t, 1, card.Categories[1].Position)
	assert.Equal(t, []string{}, card.Improvements)
}

func TestIsTeamEmail(t *testing.T) {
	assert.True(t, IsTeamEmail("Jo@AerialCanvas.com", DefaultTeamDomain))
	assert.False(t, IsTeamEmail("jo@aerialcanvas.com.evil.io", DefaultTeamDomain))
	assert.False(t, IsTeamEmail("jo@notaerialcanvas.com", DefaultTeamDomain))
	assert.False(t, IsTeamEmail("jo@aerialcanvas.com", ""))
}
