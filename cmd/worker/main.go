package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/salesight/salesight/internal/adapter/repository"
	"github.com/salesight/salesight/internal/infrastructure/cache"
	"github.com/salesight/salesight/internal/infrastructure/database"
	"github.com/salesight/salesight/internal/usecase/insights"
	"github.com/salesight/salesight/internal/usecase/notify"
	"github.com/salesight/salesight/pkg/ai"
	"github.com/salesight/salesight/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run AutoMigrate only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize Redis
	log.Println("📦 Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	transcriptRepo := repository.NewTranscriptRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	jobRepo := repository.NewPipelineJobRepository(db)

	// Initialize pipeline components
	log.Println("🤖 Initializing pipeline components...")
	insightClient := ai.NewClient(&cfg.Insight)
	bus := cache.NewNotificationBus(redisClient, logger)
	publisher := notify.NewPublisher(notificationRepo, bus, logger)
	service := insights.NewService(jobRepo, transcriptRepo, opportunityRepo, insightClient, publisher, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.StartWorkerPool(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	logger.Info("pipeline workers started",
		zap.Int("extract_workers", cfg.Worker.ExtractWorkers),
		zap.Int("risk_concurrency", cfg.Worker.RiskConcurrency),
		zap.String("environment", cfg.Environment),
	)

	// Block until shutdown signal, then drain workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, stopping workers")
	cancel()
	if err := service.StopWorkerPool(); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}
	logger.Info("pipeline workers stopped")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
