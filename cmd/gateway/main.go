package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wolframgate/internal/cache"
	"wolframgate/internal/config"
	"wolframgate/internal/convo"
	"wolframgate/internal/handlers"
	"wolframgate/internal/httpserver"
	"wolframgate/internal/knowledge"
	"wolframgate/internal/metrics"
	"wolframgate/internal/wolfram"
	"wolframgate/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("version", cfg.Version),
		zap.String("api_base", cfg.APIBase),
		zap.String("units", cfg.Units),
		zap.Int("max_results", cfg.MaxResults),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Result cache -----
	store := cache.NewStore(cache.Config{
		Backend:  cfg.CacheBackend,
		Capacity: cfg.CacheCap,
		Prefix:   "wolframgate",
	}, redisClient)
	store = cache.NewLoggingStore(store)

	// ----- Outbound client -----
	client, err := wolfram.NewClient(wolfram.Config{
		AppID:        cfg.AppID,
		APIBase:      cfg.APIBase,
		ConverseBase: cfg.ConverseBase,
		Timeout:      cfg.Timeout(),
		Units:        cfg.Units,
		Location:     cfg.Location,
		Scanners:     cfg.Scanners,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Service core -----
	svc := knowledge.New(client, store, convo.NewTracker(), knowledge.Options{
		CacheTTL:   cfg.CacheTTL,
		Units:      cfg.Units,
		Location:   cfg.Location,
		MaxResults: cfg.MaxResults,
	}, logger)

	// ----- Handlers -----
	kh := handlers.NewKnowledgeHandler(svc)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, kh)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("version", cfg.Version),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
