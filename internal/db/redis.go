package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// RedisOptions parses redisURL and applies the settings shared by both
// binaries. clientName shows up in CLIENT LIST.
func RedisOptions(redisURL, clientName string) (*redis.Options, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.ClientName = clientName
	// Publishes are best-effort.
	opts.WriteTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.MaxRetries = 1
	return opts, nil
}

// NewRedisClient connects to Redis and pings it within redisPingTimeout.
func NewRedisClient(ctx context.Context, redisURL, clientName string) (*redis.Client, error) {
	opts, err := RedisOptions(redisURL, clientName)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
