package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/websocket"
)

// WebSocketHandler handles WebSocket connections for the memorial
// editor's live thumbnail updates
type WebSocketHandler struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades HTTP to WebSocket
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleConnection(w, r)
}
