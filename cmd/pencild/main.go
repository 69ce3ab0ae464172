package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	// Embedded zone database so event time zones resolve on minimal images.
	_ "time/tzdata"

	"pencil-me-in-backend/config"
	"pencil-me-in-backend/internal/api"
	"pencil-me-in-backend/internal/db"
	"pencil-me-in-backend/internal/logging"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/notification"
	"pencil-me-in-backend/internal/planner"
	"pencil-me-in-backend/internal/store"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("env", cfg.Env))

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Subscriptions always live in SQL; events follow the configured backend.
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	sqlStore := store.NewGormStore(gormDB, logger)

	var events store.EventStore = sqlStore
	if cfg.Storage.Backend == config.BackendRedis {
		client, err := store.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer client.Close()
		events = store.NewRedisStore(client, cfg.Redis.KeyPrefix, logger)
	}
	logger.Info("event store ready", zap.String("backend", cfg.Storage.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := metrics.New()

	var (
		notifier       planner.Notifier
		webpushOptions *webpush.Options
		pool           *notification.WorkerPool
	)
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatal("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, pushSource{events, sqlStore}, webpushOptions, rec, logger)
		pool.Start(ctx)
		notifier = pool
	}

	svc := planner.NewService(events, notifier, rec, logger, cfg.Events.MaxDates)
	handler := api.NewHandler(svc, sqlStore, webpushOptions, cfg.Events)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server, rec, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()
	if pool != nil {
		pool.Wait()
	}

	logger.Info("server gracefully stopped")
}

// pushSource reads events from the configured backend and subscriptions from SQL.
type pushSource struct {
	store.EventStore
	store.SubscriptionStore
}
