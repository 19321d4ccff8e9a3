// Package db provides database connection helpers and the embedded schema.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig parses databaseURL and tags sessions with appName.
func PoolConfig(databaseURL, appName string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.ConnConfig.RuntimeParams["application_name"] = appName
	// Tracking transactions hold a row lock; bound how long one can wait.
	cfg.ConnConfig.RuntimeParams["lock_timeout"] = "5s"
	return cfg, nil
}

// NewPostgresPool opens a pool for appName and pings it.
func NewPostgresPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(databaseURL, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping %s: %w", cfg.ConnConfig.Host, err)
	}
	return pool, nil
}
