package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/partscout/internal/config"
)

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// New opens the backend selected by cfg.Store.Backend. The postgres backend is migrated
// before it is returned.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "file":
		slog.Info("using file job store", "dir", cfg.Store.Dir)
		return NewFileStore(cfg.Store.Dir)
	case "postgres":
		if err := RunMigrations(cfg.Database.URL); err != nil {
			return nil, err
		}
		pool, err := Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("using postgres job store")
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
