package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/jobs"
)

// Both sides of the Redis bridge deliver the same events: the worker
// publishes, the API hub broadcasts to its own clients.
var (
	_ jobs.Notifier = (*Publisher)(nil)
	_ jobs.Notifier = (*Hub)(nil)
)

func subscribedClient(h *Hub, memorialID string) *Client {
	c := &Client{
		hub:           h,
		send:          make(chan []byte, 4),
		subscriptions: map[string]bool{memorialID: true},
	}
	h.clients[c] = true
	return c
}

func TestHandleMediaEvent(t *testing.T) {
	t.Run("published event reaches a subscribed editor", func(t *testing.T) {
		h := NewHub(zap.NewNop(), nil)
		c := subscribedClient(h, "mem_1")

		event, err := json.Marshal(mediaEvent{
			Type:       "media:thumbnail-ready",
			MemorialID: "mem_1",
			Payload:    json.RawMessage(`{"memorialId":"mem_1","mediaId":"media_9","thumbnailPath":"thumbnails/media_9.jpg"}`),
		})
		require.NoError(t, err)

		h.handleMediaEvent(event)

		select {
		case raw := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, "media:thumbnail-ready", msg.Type)

			var payload ThumbnailReadyPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
			assert.Equal(t, "media_9", payload.MediaID)
			assert.Equal(t, "thumbnails/media_9.jpg", payload.ThumbnailPath)
		default:
			t.Fatal("expected the event to be delivered to the subscribed client")
		}
	})

	t.Run("event for another memorial is not delivered", func(t *testing.T) {
		h := NewHub(zap.NewNop(), nil)
		c := subscribedClient(h, "mem_1")

		event, _ := json.Marshal(mediaEvent{
			Type:       "media:thumbnail-ready",
			MemorialID: "mem_other",
			Payload:    json.RawMessage(`{}`),
		})
		h.handleMediaEvent(event)

		assert.Empty(t, c.send)
	})

	t.Run("malformed or anonymous events are dropped", func(t *testing.T) {
		h := NewHub(zap.NewNop(), nil)
		c := subscribedClient(h, "mem_1")

		h.handleMediaEvent([]byte("not json"))
		h.handleMediaEvent([]byte(`{"type":"media:thumbnail-ready","payload":{}}`))

		assert.Empty(t, c.send)
	})
}
