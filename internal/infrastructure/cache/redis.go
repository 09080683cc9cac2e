package cache

import (
	"context"
	"fmt"

	"course-enrollment/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds the client shared by the redis queue, the redis
// status ledger and the idempotency store.
func NewRedisClient(cfg config.CacheConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
}

func HealthCheck(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
