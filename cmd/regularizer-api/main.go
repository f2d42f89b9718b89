// Package main provides the regularizer API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/saaqdata/regularizer/internal/cache"
	"github.com/saaqdata/regularizer/internal/config"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
	"github.com/saaqdata/regularizer/pkg/engine"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting regularizer API")

	db, err := storage.Open(storage.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.DatabaseDSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	if err := storage.NewMigrator(db, cfg.Database.MigrationsDir, cfg.Database.Driver).Apply(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("Migrations failed")
	}
	cancel()

	var snap cache.Client
	if cfg.Cache.Driver == "redis" {
		snap, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Redis connection failed")
		}
	} else {
		snap = cache.NewMemoryClient()
	}
	defer snap.Close()

	eng, err := engine.New(engine.Config{
		DB: db,
		Years: yearconfig.Partition{
			Curated:   cfg.Years.Curated,
			Uncurated: cfg.Years.Uncurated,
		},
		SnapshotCache:         snap,
		SnapshotTTL:           cfg.Cache.TTL,
		RegularizationEnabled: cfg.Regularization.Enabled,
		Logger:                logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Engine initialization failed")
	}

	router := NewRouter(logger, eng, db, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
