package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/media"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/metrics"
	"github.com/memoria-app/backend/internal/shared/storage"
)

// Notifier delivers thumbnail lifecycle events to memorial editors.
// The worker publishes through Redis since editor connections live on
// the API process.
type Notifier interface {
	BroadcastThumbnailReady(memorialID, mediaID, thumbnailPath string)
	BroadcastThumbnailFailed(memorialID, mediaID, errorMsg string)
}

// Handler processes background tasks
type Handler struct {
	db        *database.Postgres
	storage   *storage.Service
	processor *media.Processor
	notifier  Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewHandler creates a new task handler
func NewHandler(db *database.Postgres, store *storage.Service, processor *media.Processor, notifier Notifier, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		db:        db,
		storage:   store,
		processor: processor,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
	}
}

// Register wires the handler's task types into an asynq mux
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGenerateThumbnail, h.HandleThumbnail)
	mux.HandleFunc(TypeCleanupFiles, h.HandleCleanup)
}

// HandleThumbnail generates a thumbnail for an uploaded media item and
// notifies the memorial editor through the notifier
func (h *Handler) HandleThumbnail(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload ThumbnailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid thumbnail payload: %w", err)
	}

	h.logger.Info("generating thumbnail",
		zap.String("media_id", payload.MediaID),
		zap.String("kind", payload.Kind))

	localPath, cleanup, err := h.storage.PrepareInputForProcessing(ctx, payload.StoragePath)
	if err != nil {
		h.recordFailure(payload, start, err)
		return err
	}
	defer cleanup()

	tmpOut := filepath.Join(os.TempDir(), fmt.Sprintf("thumb-%s.jpg", payload.MediaID))
	defer os.Remove(tmpOut)

	switch payload.Kind {
	case "video":
		err = h.processor.GenerateVideoThumbnail(ctx, localPath, tmpOut, 1.0)
	default:
		err = h.processor.GenerateImageThumbnail(ctx, localPath, tmpOut)
	}
	if err != nil {
		h.recordFailure(payload, start, err)
		return err
	}

	thumbFile, err := os.Open(tmpOut)
	if err != nil {
		h.recordFailure(payload, start, err)
		return fmt.Errorf("failed to open generated thumbnail: %w", err)
	}
	defer thumbFile.Close()

	info, err := h.storage.Store(ctx, storage.ZoneThumbnail, payload.MediaID+".jpg", thumbFile)
	if err != nil {
		h.recordFailure(payload, start, err)
		return err
	}

	_, err = h.db.Pool.Exec(ctx, `
		UPDATE memorial_media SET thumbnail_path = $1, updated_at = NOW() WHERE id = $2
	`, info.Path, payload.MediaID)
	if err != nil {
		h.recordFailure(payload, start, err)
		return fmt.Errorf("failed to record thumbnail path: %w", err)
	}

	if h.metrics != nil {
		h.metrics.RecordThumbnailJob("completed", time.Since(start))
	}
	h.notifier.BroadcastThumbnailReady(payload.MemorialID, payload.MediaID, info.Path)

	h.logger.Info("thumbnail generated",
		zap.String("media_id", payload.MediaID),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (h *Handler) recordFailure(payload ThumbnailPayload, start time.Time, err error) {
	if h.metrics != nil {
		h.metrics.RecordThumbnailJob("failed", time.Since(start))
	}
	h.notifier.BroadcastThumbnailFailed(payload.MemorialID, payload.MediaID, err.Error())
	h.logger.Error("thumbnail generation failed",
		zap.Error(err),
		zap.String("media_id", payload.MediaID))
}

// HandleCleanup sweeps aged files out of a transient storage zone.
// Only the local filesystem is swept; S3 deployments use bucket
// lifecycle rules for the same effect.
func (h *Handler) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid cleanup payload: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(payload.OlderThan) * time.Second)
	zonePath := h.storage.GetPath(storage.Zone(payload.Zone), "")

	removed := 0
	err := filepath.Walk(zonePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove expired file", zap.Error(err), zap.String("path", path))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cleanup walk failed: %w", err)
	}

	if removed > 0 {
		h.logger.Info("cleaned up expired files",
			zap.String("zone", payload.Zone),
			zap.Int("removed", removed))
	}
	return nil
}
