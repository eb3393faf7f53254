package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Keepitcity/proof/models"
	ws "github.com/Keepitcity/proof/websocket"
)

// DefaultCallTimeout bounds one websocket-driven engine call, evaluation included
const DefaultCallTimeout = 2 * time.Minute

// CallProcessor runs a live text call over a websocket client
type CallProcessor struct {
	manager *SessionManager
	timeout time.Duration
}

func NewCallProcessor(manager *SessionManager) *CallProcessor {
	return &CallProcessor{manager: manager, timeout: DefaultCallTimeout}
}

// Greet replays the latest persona line so a client that connects after
// the call was started over HTTP sees where it stands.
func (p *CallProcessor) Greet(client *ws.Client) {
	session, err := p.manager.Get(client.SessionID)
	if err != nil {
		p.sendError(client, err)
		return
	}
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == models.MessageRolePersona {
			client.SendMessage(ws.Message{Type: ws.TypePersonaMessage, Content: session.Messages[i].Content})
			break
		}
	}
	if session.IsComplete {
		client.SendMessage(ws.Message{Type: ws.TypeCallEnded})
	}
}

// HandleMessage routes one inbound message
func (p *CallProcessor) HandleMessage(client *ws.Client, msg ws.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch msg.Type {
	case ws.TypeTraineeMessage:
		p.processTraineeMessage(ctx, client, msg.Content)
	case ws.TypeEndCall:
		slog.Info("Received end_call request", "session_id", client.SessionID)
		client.SendMessage(ws.Message{Type: ws.TypeCallEnded})
		p.evaluate(ctx, client)
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "session_id", client.SessionID)
		client.SendMessage(ws.Message{Type: ws.TypeError, Content: "unknown message type " + msg.Type})
	}
}

func (p *CallProcessor) processTraineeMessage(ctx context.Context, client *ws.Client, text string) {
	if strings.TrimSpace(text) == "" {
		client.SendMessage(ws.Message{Type: ws.TypeError, Content: "message is empty"})
		return
	}

	reply, session, err := p.manager.Respond(ctx, client.SessionID, text)
	if err != nil {
		slog.Error("Failed to process trainee message", "error", err, "session_id", client.SessionID)
		p.sendError(client, err)
		return
	}

	client.SendMessage(ws.Message{Type: ws.TypePersonaMessage, Content: reply})
	if session.IsComplete {
		client.SendMessage(ws.Message{Type: ws.TypeCallEnded, Content: reply})
		p.evaluate(ctx, client)
	}
}

func (p *CallProcessor) evaluate(ctx context.Context, client *ws.Client) {
	result, _, err := p.manager.Finish(ctx, client.SessionID)
	if err != nil {
		slog.Error("Failed to evaluate call", "error", err, "session_id", client.SessionID)
		p.sendError(client, err)
		return
	}
	client.SendMessage(ws.Message{Type: ws.TypeResult, Data: result})
}

func (p *CallProcessor) sendError(client *ws.Client, err error) {
	client.SendMessage(ws.Message{Type: ws.TypeError, Content: err.Error()})
}
