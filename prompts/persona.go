package prompts

import (
	"fmt"
	"strings"

	"github.com/Keepitcity/proof/models"
)

// OpeningDirective asks the persona for its first line when the scenario has none
const OpeningDirective = "[The phone is ringing. You are the client. You initiated this call. Say your opening line.]"

const personaPreamble = "You are playing the role of a real estate client on a phone call. This is a training simulation but you must NEVER break character."

const behaviourRules = `HOW TO BEHAVE:
1. You initiated this call. You're a real person, not a robot.
2. Talk like a real person on a phone call — casual, natural, with filler words sometimes
3. Keep responses to 2-4 sentences usually. This is a conversation, not a monologue.
4. If the trainee does a good job (asks smart questions, shows empathy), warm up gradually
5. If the trainee does a bad job (pushy, dismissive, robotic), get more difficult
6. Use your objections naturally — don't frontload them all
7. If they uncover your hidden goal, start moving toward resolution
8. You can end the call if things go really well ("Alright, let's do it") or really badly ("You know what, I think I'll call someone else")
9. NEVER say you are AI. NEVER break character. NEVER reference this being a simulation.
`

// Persona renders the system instruction for the agent playing the client
func Persona(s *models.Scenario) string {
	p := s.Persona
	var b strings.Builder

	b.WriteString(personaPreamble)
	b.WriteString("\n\nWHO YOU ARE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Brokerage: %s\n", p.Company)
	fmt.Fprintf(&b, "- Personality: %s\n", p.Personality)
	if p.BudgetRange != nil && *p.BudgetRange != "" {
		fmt.Fprintf(&b, "- Budget: %s\n", *p.BudgetRange)
	}

	b.WriteString("\nTHE SITUATION:\n")
	b.WriteString(s.Description)
	b.WriteString("\n\nPROPERTY DETAILS:\n")
	fmt.Fprintf(&b, "- Location: %s\n", p.City)
	fmt.Fprintf(&b, "- Type: %s\n", p.PropertyType)
	fmt.Fprintf(&b, "- Size: %s sq ft\n", p.SquareFootage)
	fmt.Fprintf(&b, "- List Price: %s\n", p.ListingPrice)

	b.WriteString("\nYOUR HIDDEN GOAL (never reveal this directly — the trainee must figure it out):\n")
	b.WriteString(p.HiddenGoal)
	b.WriteString("\n\nYOUR PAIN POINTS (bring these up naturally):\n")
	writeBullets(&b, p.PainPoints)
	b.WriteString("\nYOUR OBJECTIONS (use when appropriate, don't dump them all at once):\n")
	writeBullets(&b, p.Objections)
	if len(p.DealBreakers) > 0 {
		b.WriteString("\nTHINGS THAT WILL MAKE YOU ANGRY (deal breakers):\n")
		writeBullets(&b, p.DealBreakers)
	}

	b.WriteString("\n")
	b.WriteString(behaviourRules)
	fmt.Fprintf(&b, "10. Difficulty: %s — %s\n", s.Difficulty, toneDirective(s.Difficulty))
	return b.String()
}

func toneDirective(d models.Difficulty) string {
	switch d {
	case models.DifficultyHard:
		return "be tough but fair"
	case models.DifficultyMedium:
		return "be reasonable"
	default:
		return "be fairly easy to work with"
	}
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
