package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/trust-engine/config"
	"github.com/d60-Lab/trust-engine/internal/api"
	"github.com/d60-Lab/trust-engine/internal/api/handler"
	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/internal/service"
	"github.com/d60-Lab/trust-engine/pkg/database"
	"github.com/d60-Lab/trust-engine/pkg/logger"
	"github.com/d60-Lab/trust-engine/pkg/tracing"
)

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

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg)
	if err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracing(ctx) }()

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

	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userSvc := service.NewUserService(db, userRepo, jobRepo, scoreRepo, auditRepo, cfg.Wait.PollInterval)
	scoreSvc := service.NewScoreService(scoreRepo, auditRepo, jobRepo, cache)

	worker := service.NewWorker(db, jobRepo, userRepo, scoreRepo, auditRepo, cache,
		cfg.Scoring, cfg.Worker.Count, cfg.Worker.MaxAttempts, cfg.Worker.PollInterval)
	stopWorkers := worker.Start()

	sweeper := service.NewSweeper(jobRepo, cfg.Worker.SweepInterval, cfg.Worker.StaleTimeout)
	stopSweeper := sweeper.Start()

	h := handler.NewHandler(userSvc, scoreSvc, cfg.Wait.Timeout)
	router := api.NewRouter(cfg, h)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	logger.Info("trust engine started",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workers", cfg.Worker.Count),
		zap.String("db", cfg.Database.Driver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = stopWorkers(shutdownCtx)
	_ = stopSweeper(shutdownCtx)
}
