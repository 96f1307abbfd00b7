package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeGenerateThumbnail = "media:thumbnail"
	TypeCleanupFiles      = "files:cleanup"
)

// QueueClient handles job queue operations
type QueueClient struct {
	client *asynq.Client
	logger *zap.Logger
}

// NewQueueClient creates a new queue client
func NewQueueClient(redisAddr string, logger *zap.Logger) *QueueClient {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &QueueClient{
		client: client,
		logger: logger,
	}
}

// Close closes the queue client
func (q *QueueClient) Close() error {
	return q.client.Close()
}

// ThumbnailPayload contains thumbnail generation task data
type ThumbnailPayload struct {
	MediaID     string `json:"mediaId"`
	MemorialID  string `json:"memorialId"`
	Kind        string `json:"kind"`
	StoragePath string `json:"storagePath"`
}

// CleanupPayload contains file cleanup task data
type CleanupPayload struct {
	Zone      string `json:"zone"`
	OlderThan int64  `json:"olderThan"` // Unix timestamp
}

// EnqueueThumbnail queues thumbnail generation for an uploaded media item
func (q *QueueClient) EnqueueThumbnail(payload ThumbnailPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TypeGenerateThumbnail, data)

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(5 * time.Minute),
		asynq.Queue("default"),
	}

	info, err := q.client.Enqueue(task, opts...)
	if err != nil {
		q.logger.Error("failed to enqueue thumbnail task",
			zap.Error(err),
			zap.String("media_id", payload.MediaID))
		return nil, err
	}

	q.logger.Info("thumbnail task enqueued",
		zap.String("task_id", info.ID),
		zap.String("media_id", payload.MediaID),
	)

	return info, nil
}

// ScheduleCleanup registers the periodic upload-zone sweep. Files in
// the upload zone are transient; anything older than a day is an
// abandoned batch.
func (q *QueueClient) ScheduleCleanup(redisAddr string) error {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddr},
		nil,
	)

	uploadPayload, _ := json.Marshal(CleanupPayload{
		Zone:      "upload",
		OlderThan: int64(24 * time.Hour / time.Second),
	})
	if _, err := scheduler.Register("@hourly", asynq.NewTask(TypeCleanupFiles, uploadPayload)); err != nil {
		return err
	}

	return scheduler.Start()
}
