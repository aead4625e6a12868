package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terra-clan/apply-wizard/internal/config"
	"github.com/terra-clan/apply-wizard/internal/drafts"
)

// openStore connects the draft backend selected by cfg
func openStore(ctx context.Context, cfg *config.Config) (drafts.Store, error) {
	switch cfg.Drafts.Backend {
	case config.BackendMemory:
		slog.Warn("drafts are kept in memory and lost on restart")
		return drafts.NewMemoryStore(), nil

	case config.BackendRedis:
		store, err := drafts.NewRedisStore(ctx, drafts.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Drafts.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis draft store connected", "address", cfg.Redis.Address)
		return store, nil

	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
			if err := drafts.Migrate(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		store, err := drafts.NewPostgresStore(ctx, drafts.PostgresConfig{
			DSN:          cfg.Database.DSN,
			Table:        cfg.Database.DraftsTable,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connected successfully")
		return store, nil
	}

	return nil, fmt.Errorf("unknown draft backend %q", cfg.Drafts.Backend)
}
