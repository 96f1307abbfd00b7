package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/shared/database"
)

// mediaEventsChannel carries thumbnail lifecycle events from the worker
// process to the API process, whose hub holds the editor connections.
const mediaEventsChannel = "memoria:media-events"

type mediaEvent struct {
	Type       string          `json:"type"`
	MemorialID string          `json:"memorialId"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher broadcasts media events through Redis for delivery by a hub
// in another process. The worker publishes; the API server relays.
type Publisher struct {
	redis  *database.Redis
	logger *zap.Logger
}

// NewPublisher creates a media event publisher
func NewPublisher(redis *database.Redis, logger *zap.Logger) *Publisher {
	return &Publisher{redis: redis, logger: logger}
}

func (p *Publisher) publish(msgType, memorialID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal media event", zap.Error(err))
		return
	}
	event, err := json.Marshal(mediaEvent{
		Type:       msgType,
		MemorialID: memorialID,
		Payload:    data,
	})
	if err != nil {
		p.logger.Error("failed to marshal media event", zap.Error(err))
		return
	}
	if err := p.redis.Client.Publish(context.Background(), mediaEventsChannel, event).Err(); err != nil {
		p.logger.Warn("failed to publish media event",
			zap.Error(err),
			zap.String("type", msgType),
			zap.String("memorial_id", memorialID))
	}
}

// BroadcastThumbnailReady publishes a thumbnail-ready event
func (p *Publisher) BroadcastThumbnailReady(memorialID, mediaID, thumbnailPath string) {
	p.publish("media:thumbnail-ready", memorialID, ThumbnailReadyPayload{
		MemorialID:    memorialID,
		MediaID:       mediaID,
		ThumbnailPath: thumbnailPath,
	})
}

// BroadcastThumbnailFailed publishes a thumbnail-failed event
func (p *Publisher) BroadcastThumbnailFailed(memorialID, mediaID, errorMsg string) {
	p.publish("media:thumbnail-failed", memorialID, ThumbnailFailedPayload{
		MemorialID: memorialID,
		MediaID:    mediaID,
		Error:      errorMsg,
	})
}

// RelayMediaEvents subscribes to the media events channel and forwards
// each event to the hub's subscribed clients. Blocks until ctx is done;
// run it in a goroutine next to Run.
func (h *Hub) RelayMediaEvents(ctx context.Context, redis *database.Redis) {
	sub := redis.Client.Subscribe(ctx, mediaEventsChannel)
	defer sub.Close()

	h.logger.Info("relaying media events", zap.String("channel", mediaEventsChannel))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			h.handleMediaEvent([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleMediaEvent(data []byte) {
	var event mediaEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.Warn("invalid media event", zap.Error(err))
		return
	}
	if event.MemorialID == "" {
		return
	}
	h.SendToMemorial(event.MemorialID, event.Type, event.Payload)
}
