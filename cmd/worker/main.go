package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/websocket"
	"github.com/memoria-app/backend/internal/modules/jobs"
	"github.com/memoria-app/backend/internal/modules/media"
	"github.com/memoria-app/backend/internal/shared/config"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/logging"
	"github.com/memoria-app/backend/internal/shared/metrics"
	"github.com/memoria-app/backend/internal/shared/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Memoria Worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment),
	)

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	storageService, err := storage.NewService(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	redisConn, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisConn.Close()

	m := metrics.New()

	// Editor connections live on the API process; thumbnail events go
	// out through Redis and the API hub relays them.
	notifier := websocket.NewPublisher(redisConn, logger)

	processor := media.NewProcessor(cfg.FFmpegPath, logger)
	jobHandler := jobs.NewHandler(db, storageService, processor, notifier, logger, m)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisURL},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	jobHandler.Register(mux)

	// Periodic upload-zone sweep
	queueClient := jobs.NewQueueClient(cfg.RedisURL, logger)
	defer queueClient.Close()
	if err := queueClient.ScheduleCleanup(cfg.RedisURL); err != nil {
		logger.Error("Failed to schedule cleanup", zap.Error(err))
	}

	go func() {
		logger.Info("Worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
		if err := srv.Run(mux); err != nil {
			logger.Fatal("Worker failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Info("Worker stopped")
}
