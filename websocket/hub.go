package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Inbound and outbound message types of a live call
const (
	TypeTraineeMessage = "trainee_message"
	TypeEndCall        = "end_call"

	TypePersonaMessage = "persona_message"
	TypeCallEnded      = "call_ended"
	TypeResult         = "result"
	TypeError          = "error"
)

const (
	maxMessageSize = 64 * 1024
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// Hub tracks connected clients, one per live call
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	ID             string
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	SessionID      string
	MessageHandler func(*Client, Message)

	closeOnce sync.Once
}

type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "client_id", client.ID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "client_id", client.ID, "session_id", client.SessionID)
		}
	}
}

// Count reports connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient binds a connection to an existing consultation session
func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID string) *Client {
	client := NewClient(conn, sessionID)
	client.Hub = h
	h.register <- client
	return client
}

// NewClient builds an unregistered client. Tests use it with a nil Conn to
// read what would be written from Send.
func NewClient(conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
	}
}

// ReadPump handles messages in order; a call is a strict back and forth so
// the next trainee line waits for the previous persona reply.
func (c *Client) ReadPump() {
	defer func() {
		if c.Hub != nil {
			c.Hub.unregister <- c
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err, "session_id", c.SessionID)
			c.SendMessage(Message{Type: TypeError, Content: "invalid message"})
			continue
		}

		slog.Info("Message received", "type", msg.Type, "session_id", c.SessionID, "content_length", len(msg.Content))

		if c.MessageHandler != nil {
			c.MessageHandler(c, msg)
		} else {
			slog.Warn("No handler for message", "type", msg.Type, "session_id", c.SessionID)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg for the write pump. It drops the message when the
// buffer is full or the client has gone away.
func (c *Client) SendMessage(msg Message) {
	if msg.SessionID == "" {
		msg.SessionID = c.SessionID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "type", msg.Type)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Send on closed client", "session_id", c.SessionID)
		}
	}()
	select {
	case c.Send <- payload:
	default:
		slog.Warn("Client send buffer full, dropping message", "session_id", c.SessionID, "type", msg.Type)
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}
