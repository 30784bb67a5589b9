package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis under a key prefix, so that
// several server processes share one cache.
type RedisCache[K comparable, V any] struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache[K comparable, V any](client *redis.Client, prefix string) *RedisCache[K, V] {
	return &RedisCache[K, V]{client: client, prefix: prefix}
}

func (c *RedisCache[K, V]) key(k K) string {
	return fmt.Sprintf("%s%v", c.prefix, k)
}

// Get implements Cache.Get.
func (c *RedisCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var value V
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("cache get error: %w", err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return value, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Delete implements Cache.Delete.
func (c *RedisCache[K, V]) Delete(ctx context.Context, key K) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is healthy.
func (c *RedisCache[K, V]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Cache[int64, string] = (*RedisCache[int64, string])(nil)
