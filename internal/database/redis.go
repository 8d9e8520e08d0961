package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lethai-bot/internal/config"
)

// ConnectRedis returns nil without error when REDIS_ADDR is not set; the
// balance cache and reconciler alerts degrade gracefully without it.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		zap.L().Info("Redis not configured, caching disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	zap.L().Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return rdb, nil
}
