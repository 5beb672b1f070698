// Package infra opens the optional external backends.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Backends holds the connections that were configured. Either may be nil.
type Backends struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects to Postgres and Redis when their URLs are set.
func Open(ctx context.Context, databaseURL, redisURL string, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	if databaseURL != "" {
		pool, err := NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		b.DB = pool
		logger.Info("postgres connected")
	}
	if redisURL != "" {
		cache, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Cache = cache
		logger.Info("redis connected")
	}
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b.Cache != nil {
		b.Cache.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
}

// NewPostgresPool configures a PostgreSQL connection pool and verifies connectivity.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
