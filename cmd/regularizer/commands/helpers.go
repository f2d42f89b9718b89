package commands

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/cache"
	"github.com/saaqdata/regularizer/internal/config"
	"github.com/saaqdata/regularizer/internal/observability"
	"github.com/saaqdata/regularizer/internal/storage"
	"github.com/saaqdata/regularizer/internal/yearconfig"
	"github.com/saaqdata/regularizer/pkg/engine"
)

// app bundles everything a command needs.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	engine *engine.Engine
	close  func()
}

// setup loads configuration, opens the database, and wires the engine.
// Callers must invoke app.close when done.
func setup() (*app, error) {
	ui.Init(noColor)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Observability.LogFormat,
		Output: os.Stderr,
	})

	db, err := storage.Open(storage.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.DatabaseDSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var snap cache.Client
	if cfg.Cache.Driver == "redis" {
		snap, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	} else {
		snap = cache.NewMemoryClient()
	}

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
		snap.Close()
		db.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		db:     db,
		engine: eng,
		close: func() {
			snap.Close()
			db.Close()
		},
	}, nil
}
