package db

import (
	"context"
	"fmt"

	"CrmAPI/internal/logger"

	"github.com/redis/go-redis/v9"
)

// InitRedis returns nil when addr is empty; callers treat a nil client as "disabled".
func InitRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		logger.Warn("redis_disabled", nil)
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis_connected", map[string]any{"addr": addr})
	return rdb, nil
}
