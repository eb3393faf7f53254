package prompts

import "github.com/Keepitcity/proof/models"

type TurnRole string

const (
	TurnSystem TurnRole = "system"
	TurnAgent  TurnRole = "agent"
	TurnUser   TurnRole = "user"
)

// Turn is one entry of a chat-completion request. Providers map TurnAgent to
// their own assistant/model role.
type Turn struct {
	Role    TurnRole
	Content string
}

// ChatHistory puts the persona prompt first, then the call so far with
// persona lines as agent turns and trainee lines as user turns.
func ChatHistory(session *models.ConsultationSession) []Turn {
	turns := make([]Turn, 0, len(session.Messages)+1)
	turns = append(turns, Turn{Role: TurnSystem, Content: Persona(&session.Scenario)})
	for _, m := range session.Messages {
		role := TurnUser
		if m.Role == models.MessageRolePersona {
			role = TurnAgent
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns
}

// OpeningHistory is the request used to generate an opening line
func OpeningHistory(s *models.Scenario) []Turn {
	return []Turn{
		{Role: TurnSystem, Content: Persona(s)},
		{Role: TurnUser, Content: OpeningDirective},
	}
}

// SplitSystem separates the leading system turn for providers that take the
// system instruction out of band.
func SplitSystem(turns []Turn) (string, []Turn) {
	if len(turns) > 0 && turns[0].Role == TurnSystem {
		return turns[0].Content, turns[1:]
	}
	return "", turns
}
