package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"milkledger/backend/internal/domain"
)

type RedisStockReportCache struct {
	client *redis.Client
}

func NewRedisStockReportCache(addr string, password string, db int) *RedisStockReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStockReportCache{client: client}
}

func (c *RedisStockReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStockReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisStockReportCache) Get(ctx context.Context, key string) ([]domain.ProductStock, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var levels []domain.ProductStock
	if err := json.Unmarshal([]byte(val), &levels); err != nil {
		return nil, false, err
	}
	return levels, true, nil
}

func (c *RedisStockReportCache) Set(ctx context.Context, key string, value []domain.ProductStock, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisStockReportCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
