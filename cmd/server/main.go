package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-sync-service/config"
	"order-sync-service/internal/api"
	"order-sync-service/internal/broker"
	"order-sync-service/internal/models"
	"order-sync-service/internal/redisclient"
	"order-sync-service/internal/service"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"
	"order-sync-service/internal/webhook"
	"order-sync-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order sync service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.TracingOptions{
		ServiceName:    "order-sync-service",
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.SampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Database connected (%s)", cfg.Database.Driver)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.EnsureSyncSettings(seedCtx, &models.SyncSettings{
		EndpointBaseURL: cfg.Sync.EndpointURL,
		WebhookSecret:   cfg.Sync.WebhookSecret,
		SyncOnStatus:    cfg.Sync.SyncOnStatus,
	})
	seedCancel()
	if err != nil {
		log.Fatalf("Failed to seed sync settings: %v", err)
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSyncJobs)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	syncService := service.NewSyncService(
		db,
		webhook.NewClient(cfg.Sync.Timeout),
		redisClient,
		eventPublisher,
		service.Options{
			Timeout:          cfg.Sync.Timeout,
			MaxRetries:       cfg.Sync.MaxRetries,
			RetryBackoffBase: cfg.Sync.RetryBackoffBase,
		},
	)
	orderService := service.NewOrderService(db, syncService)
	logService := service.NewLogService(db)
	settingsService := service.NewSettingsService(db, webhook.NewClient(cfg.Sync.ProbeTimeout))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	syncConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSyncJobs, cfg.Kafka.ConsumerGroup)
	syncWorker := worker.NewSyncWorker(syncConsumer, syncService)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil {
			log.Printf("Sync worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Orders:   orderService,
		Sync:     syncService,
		Logs:     logService,
		Settings: settingsService,
		DB:       db,
	}, api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if err := syncWorker.Stop(); err != nil {
		log.Printf("Error stopping sync worker: %v", err)
	}

	// in-process fallback attempts still hold their log writes
	syncService.Wait()

	log.Println("Server exited")
}
