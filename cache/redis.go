package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/commerce/services/orders/config"
)

// ErrCacheMiss is returned when a key is not present
var ErrCacheMiss = errors.New("key not found in cache")

// RedisCache provides read-model caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

// Enabled reports whether the cache is active. Safe on a nil receiver so
// callers can pass through a failed initialization.
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache with the configured expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	err = c.client.Set(ctx, key, data, c.ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}

	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return errors.Wrap(err, "failed to delete value from Redis")
	}

	return nil
}

// SummaryKey generates a cache key for an order summary
func (c *RedisCache) SummaryKey(orderID string) string {
	return fmt.Sprintf("order-summary:%s", orderID)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}

	return c.client.Close()
}
