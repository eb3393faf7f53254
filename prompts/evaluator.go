package prompts

import (
	"fmt"
	"strings"

	"github.com/Keepitcity/proof/models"
)

// TraineeLabel tags trainee lines in the transcript
const TraineeLabel = "TRAINEE"

const evaluatorPreamble = "You are an expert consultation trainer at a real estate marketing company called Aerial Canvas. You are evaluating a training call simulation."

const evaluatorInstructions = `Evaluate the trainee's performance. Be specific — reference actual quotes from the conversation.
Score relative to difficulty level. A perfect score on Hard should be truly exceptional.

Return a JSON object with this EXACT structure (no markdown, just raw JSON):
`

// Evaluator renders the grading prompt. Unlike Persona it reveals the hidden
// goal and success criteria.
func Evaluator(s *models.Scenario, messages []models.Message, elapsedSeconds float64) string {
	p := s.Persona
	var b strings.Builder

	b.WriteString(evaluatorPreamble)
	fmt.Fprintf(&b, "\n\nSCENARIO: %s\n", s.Title)
	fmt.Fprintf(&b, "- Category: %s\n", s.Category)
	fmt.Fprintf(&b, "- Team Role: %s\n", s.TeamRole)
	fmt.Fprintf(&b, "- Difficulty: %s\n", s.Difficulty)
	fmt.Fprintf(&b, "- Description: %s\n", s.Description)

	b.WriteString("\nCLIENT PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Brokerage: %s\n", p.Company)
	fmt.Fprintf(&b, "- Personality: %s\n", p.Personality)
	fmt.Fprintf(&b, "- Property: %s sq ft %s in %s\n", p.SquareFootage, p.PropertyType, p.City)

	b.WriteString("\nCLIENT'S HIDDEN GOAL (trainee needed to uncover this):\n")
	b.WriteString(p.HiddenGoal)
	b.WriteString("\n\nSUCCESS CRITERIA:\n")
	writeBullets(&b, s.SuccessCriteria)

	fmt.Fprintf(&b, "\nCALL DURATION: %.1f minutes\n", elapsedSeconds/60)
	fmt.Fprintf(&b, "TOTAL EXCHANGES: %d messages\n", len(messages))

	b.WriteString("\n--- FULL TRANSCRIPT ---\n\n")
	b.WriteString(Transcript(s, messages))
	b.WriteString("\n\n--- END TRANSCRIPT ---\n\n")

	b.WriteString(evaluatorInstructions)
	b.WriteString(outputContract())
	return b.String()
}

// Transcript labels each message with the persona's name or TraineeLabel
func Transcript(s *models.Scenario, messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := TraineeLabel
		if m.Role == models.MessageRolePersona {
			speaker = s.Persona.Name
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", speaker, m.Content))
	}
	return strings.Join(lines, "\n\n")
}

func outputContract() string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString(`    "overall_score": <0-100>,` + "\n")
	b.WriteString(`    "category_scores": [` + "\n")
	for i, c := range models.ScoreCategories {
		feedback := "<2-3 sentences>"
		if i == 0 {
			feedback = "<2-3 sentences referencing specific moments>"
		}
		sep := ","
		if i == len(models.ScoreCategories)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, `        {"category": "%s", "score": <0-100>, "feedback": "%s"}%s`+"\n", c, feedback, sep)
	}
	b.WriteString("    ],\n")
	b.WriteString(`    "strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],` + "\n")
	b.WriteString(`    "improvements": ["<improvement 1>", "<improvement 2>", "<improvement 3>"],` + "\n")
	b.WriteString(`    "key_moments": ["<describe a specific good or bad moment from the call>", "<another moment>"],` + "\n")
	b.WriteString(`    "client_satisfaction": <0-100>,` + "\n")

	outcomes := make([]string, len(models.DealOutcomes))
	for i, o := range models.DealOutcomes {
		outcomes[i] = string(o)
	}
	fmt.Fprintf(&b, `    "deal_outcome": "<%s>",`+"\n", strings.Join(outcomes, " | "))
	b.WriteString(`    "summary": "<3-4 sentence overall assessment of the trainee's performance>"` + "\n")
	b.WriteString("}")
	return b.String()
}
