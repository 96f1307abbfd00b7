package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/shared/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware upstream
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ThumbnailReadyPayload notifies the memorial editor that a media
// item's thumbnail finished processing
type ThumbnailReadyPayload struct {
	MemorialID    string `json:"memorialId"`
	MediaID       string `json:"mediaId"`
	ThumbnailPath string `json:"thumbnailPath"`
}

// ThumbnailFailedPayload notifies the editor that processing failed
type ThumbnailFailedPayload struct {
	MemorialID string `json:"memorialId"`
	MediaID    string `json:"mediaId"`
	Error      string `json:"error"`
}

// Client represents a connected memorial editor session
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool // memorial IDs
	mu            sync.RWMutex
}

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		metrics:    m,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordWebSocketConnection(true)
			}
			h.logger.Debug("client connected", zap.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordWebSocketConnection(false)
			}
			h.logger.Debug("client disconnected", zap.Int("total_clients", len(h.clients)))
		}
	}
}

// HandleConnection handles a new WebSocket connection
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// SendToMemorial sends a message to all clients watching a memorial
func (h *Hub) SendToMemorial(memorialID string, msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msgBytes, err := json.Marshal(Message{
		Type:    msgType,
		Payload: data,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.mu.RLock()
		subscribed := client.subscriptions[memorialID]
		client.mu.RUnlock()

		if subscribed {
			select {
			case client.send <- msgBytes:
			default:
				// Client buffer full, skip
			}
		}
	}

	return nil
}

// BroadcastThumbnailReady notifies watchers that a thumbnail is ready
func (h *Hub) BroadcastThumbnailReady(memorialID, mediaID, thumbnailPath string) {
	h.SendToMemorial(memorialID, "media:thumbnail-ready", ThumbnailReadyPayload{
		MemorialID:    memorialID,
		MediaID:       mediaID,
		ThumbnailPath: thumbnailPath,
	})
}

// BroadcastThumbnailFailed notifies watchers that processing failed
func (h *Hub) BroadcastThumbnailFailed(memorialID, mediaID, errorMsg string) {
	h.SendToMemorial(memorialID, "media:thumbnail-failed", ThumbnailFailedPayload{
		MemorialID: memorialID,
		MediaID:    mediaID,
		Error:      errorMsg,
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.logger.Error("websocket write error", zap.Error(err))
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "subscribe":
		var payload struct {
			MemorialID string `json:"memorialId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && payload.MemorialID != "" {
			c.mu.Lock()
			c.subscriptions[payload.MemorialID] = true
			c.mu.Unlock()
			c.hub.logger.Debug("client subscribed to memorial", zap.String("memorial_id", payload.MemorialID))
		}

	case "unsubscribe":
		var payload struct {
			MemorialID string `json:"memorialId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			c.mu.Lock()
			delete(c.subscriptions, payload.MemorialID)
			c.mu.Unlock()
		}

	case "ping":
		response, _ := json.Marshal(Message{Type: "pong"})
		c.send <- response
	}
}
