package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/trust-engine/config"
	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/internal/service"
	"github.com/d60-Lab/trust-engine/pkg/database"
	"github.com/d60-Lab/trust-engine/pkg/logger"
)

// Standalone worker-pool process. Runs only the claim/compute/persist loop
// and the stale-claim sweeper, so recompute capacity can scale independently
// of the API tier. Safe to run alongside any number of server processes:
// the claim protocol guarantees each job is processed by exactly one worker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	cache := service.NewScoreCache(redisClient, cfg.Redis.ScoreTTL)

	jobRepo := repository.NewJobRepository(db)
	userRepo := repository.NewUserRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	worker := service.NewWorker(db, jobRepo, userRepo, scoreRepo, auditRepo, cache,
		cfg.Scoring, cfg.Worker.Count, cfg.Worker.MaxAttempts, cfg.Worker.PollInterval)
	stopWorkers := worker.Start()

	sweeper := service.NewSweeper(jobRepo, cfg.Worker.SweepInterval, cfg.Worker.StaleTimeout)
	stopSweeper := sweeper.Start()

	logger.Info("trust engine worker started",
		zap.Int("workers", cfg.Worker.Count),
		zap.Int("max_attempts", cfg.Worker.MaxAttempts),
		zap.Duration("poll_interval", cfg.Worker.PollInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = stopWorkers(shutdownCtx)
	_ = stopSweeper(shutdownCtx)
}
