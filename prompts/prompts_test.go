package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keepitcity/proof/models"
)

func testScenario(d models.Difficulty) *models.Scenario {
	return &models.Scenario{
		ID:          "random_abc",
		Title:       "The Price Pushback",
		Category:    models.CategoryBudgetObjection,
		TeamRole:    models.RoleSales,
		Difficulty:  d,
		Description: "Sarah Chen at Compass thinks you cost too much.",
		Persona: models.ClientPersona{
			Name:          "Sarah Chen",
			Company:       "Compass",
			Personality:   "Price-focused",
			HiddenGoal:    "Would switch for faster turnaround.",
			PainPoints:    []string{"Missed deadlines", "Inconsistent quality"},
			Objections:    []string{"You're 30% more expensive"},
			DealBreakers:  []string{"Arrogance"},
			City:          "Oakland",
			PropertyType:  "condo",
			SquareFootage: "1,800",
			ListingPrice:  "$1.1M",
		},
		SuccessCriteria: []string{"Acknowledge the price difference", "Close with a next step"},
		MaxTurns:        20,
	}
}

func TestPersonaPrompt(t *testing.T) {
	s := testScenario(models.DifficultyHard)
	out := Persona(s)

	for _, want := range []string{
		"NEVER break character",
		"- Name: Sarah Chen",
		"- Brokerage: Compass",
		"- Personality: Price-focused",
		"THE SITUATION:\nSarah Chen at Compass thinks you cost too much.",
		"- Location: Oakland",
		"- Size: 1,800 sq ft",
		"- List Price: $1.1M",
		"YOUR HIDDEN GOAL (never reveal this directly",
		"Would switch for faster turnaround.",
		"- Missed deadlines\n- Inconsistent quality\n",
		"- You're 30% more expensive\n",
		"THINGS THAT WILL MAKE YOU ANGRY (deal breakers):\n- Arrogance\n",
		"9. NEVER say you are AI.",
		"10. Difficulty: Hard — be tough but fair",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Budget:")
}

func TestPersonaPromptOmitsEmptyDealBreakers(t *testing.T) {
	s := testScenario(models.DifficultyEasy)
	s.Persona.DealBreakers = nil
	out := Persona(s)
	assert.NotContains(t, out, "THINGS THAT WILL MAKE YOU ANGRY")
	assert.Contains(t, out, "10. Difficulty: Easy — be fairly easy to work with")
}

func TestPersonaToneByDifficulty(t *testing.T) {
	assert.Contains(t, Persona(testScenario(models.DifficultyMedium)), "Medium — be reasonable")
}

func TestPersonaPromptBudget(t *testing.T) {
	s := testScenario(models.DifficultyHard)
	budget := "$500/listing"
	s.Persona.BudgetRange = &budget
	assert.Contains(t, Persona(s), "- Budget: $500/listing")
}

func TestEvaluatorPrompt(t *testing.T) {
	s := testScenario(models.DifficultyHard)
	at := time.Now()
	messages := []models.Message{
		models.NewMessage(models.MessageRolePersona, "You're too expensive.", at),
		models.NewMessage(models.MessageRoleTrainee, "Tell me about your current provider.", at),
	}
	out := Evaluator(s, messages, 185)

	for _, want := range []string{
		"Aerial Canvas",
		"SCENARIO: The Price Pushback",
		"- Category: Budget Objection",
		"- Team Role: Sales",
		"- Difficulty: Hard",
		"- Property: 1,800 sq ft condo in Oakland",
		"CLIENT'S HIDDEN GOAL (trainee needed to uncover this):\nWould switch for faster turnaround.",
		"- Acknowledge the price difference\n- Close with a next step\n",
		"CALL DURATION: 3.1 minutes",
		"TOTAL EXCHANGES: 2 messages",
		"--- FULL TRANSCRIPT ---\n\n[Sarah Chen]: You're too expensive.\n\n[TRAINEE]: Tell me about your current provider.\n\n--- END TRANSCRIPT ---",
		`"deal_outcome": "<closed | lost | follow-up needed>"`,
		`"summary":`,
	} {
		assert.Contains(t, out, want)
	}
	for _, c := range models.ScoreCategories {
		assert.Contains(t, out, `{"category": "`+string(c)+`"`)
	}
	assert.True(t, strings.HasSuffix(out, "}"))
}

func TestEvaluatorPromptEmptyTranscript(t *testing.T) {
	out := Evaluator(testScenario(models.DifficultyEasy), nil, 0)
	assert.Contains(t, out, "CALL DURATION: 0.0 minutes")
	assert.Contains(t, out, "TOTAL EXCHANGES: 0 messages")
}

func TestChatHistory(t *testing.T) {
	s := testScenario(models.DifficultyMedium)
	session := &models.ConsultationSession{Scenario: *s}
	session.AddMessage(models.MessageRolePersona, "hello", time.Time{})
	session.AddMessage(models.MessageRoleTrainee, "hi there", time.Time{})
	session.AddMessage(models.MessageRolePersona, "so about pricing", time.Time{})

	turns := ChatHistory(session)
	require.Len(t, turns, 4)
	assert.Equal(t, TurnSystem, turns[0].Role)
	assert.Equal(t, Persona(s), turns[0].Content)
	assert.Equal(t, Turn{Role: TurnAgent, Content: "hello"}, turns[1])
	assert.Equal(t, Turn{Role: TurnUser, Content: "hi there"}, turns[2])
	assert.Equal(t, TurnAgent, turns[3].Role)

	system, rest := SplitSystem(turns)
	assert.Equal(t, turns[0].Content, system)
	assert.Len(t, rest, 3)
}

func TestOpeningHistory(t *testing.T) {
	turns := OpeningHistory(testScenario(models.DifficultyEasy))
	require.Len(t, turns, 2)
	assert.Equal(t, TurnSystem, turns[0].Role)
	assert.Equal(t, Turn{Role: TurnUser, Content: OpeningDirective}, turns[1])

	system, rest := SplitSystem(turns[1:])
	assert.Empty(t, system)
	assert.Len(t, rest, 1)
}
