package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api"
	"github.com/memoria-app/backend/internal/api/websocket"
	"github.com/memoria-app/backend/internal/modules/checkout"
	"github.com/memoria-app/backend/internal/modules/jobs"
	"github.com/memoria-app/backend/internal/modules/media"
	"github.com/memoria-app/backend/internal/modules/memorial"
	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/promo"
	"github.com/memoria-app/backend/internal/modules/sticker"
	"github.com/memoria-app/backend/internal/modules/subscription"
	"github.com/memoria-app/backend/internal/modules/testimonial"
	"github.com/memoria-app/backend/internal/modules/user"
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

	logger.Info("Starting Memoria API Server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment),
	)

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	storageService, err := storage.NewService(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	m := metrics.New()

	wsHub := websocket.NewHub(logger, m)
	go wsHub.Run()
	// Thumbnail events published by the worker arrive over Redis
	go wsHub.RelayMediaEvents(context.Background(), redisClient)

	jobQueue := jobs.NewQueueClient(cfg.RedisURL, logger)
	defer jobQueue.Close()

	prober := media.NewProber(cfg.FFprobePath, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second, logger, m)

	// Services
	subscriptionSvc := subscription.NewService(db)
	planSvc := plan.NewService(db)
	promoSvc := promo.NewService(db, redisClient, planSvc, logger, m)
	checkoutSvc := checkout.NewService(db, redisClient, planSvc, promoSvc, subscriptionSvc, checkout.Config{
		SecretKey:  cfg.StripeSecretKey,
		Currency:   cfg.PaymentCurrency,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	}, logger, m)
	memorialSvc := memorial.NewService(db, storageService, prober, jobQueue, logger, m)
	stickerSvc := sticker.NewService(db)
	testimonialSvc := testimonial.NewService(db)
	userSvc := user.NewService(db)

	server := api.NewServer(api.ServerConfig{
		Config:          cfg,
		Logger:          logger,
		DB:              db,
		Redis:           redisClient,
		Storage:         storageService,
		Metrics:         m,
		WSHub:           wsHub,
		PlanSvc:         planSvc,
		PromoSvc:        promoSvc,
		CheckoutSvc:     checkoutSvc,
		SubscriptionSvc: subscriptionSvc,
		MemorialSvc:     memorialSvc,
		StickerSvc:      stickerSvc,
		TestimonialSvc:  testimonialSvc,
		UserSvc:         userSvc,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
