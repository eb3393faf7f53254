package services

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	ws "github.com/Keepitcity/proof/websocket"
)

type WebSocketHandler struct {
	processor *CallProcessor
	manager   *SessionManager
	hub       *ws.Hub
	upgrader  websocket.Upgrader
}

func NewWebSocketHandler(processor *CallProcessor, manager *SessionManager, hub *ws.Hub, allowedOrigins string) *WebSocketHandler {
	return &WebSocketHandler{
		processor: processor,
		manager:   manager,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

// ServeHTTP upgrades /ws?session_id=... and attaches the client to a call
// started over HTTP.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}
	if _, err := h.manager.Get(sessionID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	slog.Info("WebSocket connection established", "session_id", sessionID)

	client := h.hub.RegisterClient(conn, sessionID)
	client.MessageHandler = h.processor.HandleMessage

	go client.WritePump()
	h.processor.Greet(client)
	go client.ReadPump()
}

// CheckOrigin validates the origin of WebSocket connections against a
// comma-separated allow list. An empty list denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}
