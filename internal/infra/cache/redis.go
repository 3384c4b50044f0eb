package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"options_go/internal/domain"
)

const keyPrefix = "pricing:"

// RedisCache stores pricing records as JSON with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Key returns the redis key used for a cache key.
func Key(cacheKey string) string {
	return keyPrefix + cacheKey
}

func (c *RedisCache) GetPricing(ctx context.Context, key string) (*domain.PricingRecord, error) {
	data, err := c.client.Get(ctx, Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pricing from redis: %w", err)
	}

	var rec domain.PricingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w", err)
	}
	return &rec, nil
}

func (c *RedisCache) SavePricing(ctx context.Context, rec *domain.PricingRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}
	if err := c.client.Set(ctx, Key(rec.CacheKey), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pricing in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
