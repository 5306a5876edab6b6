package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// RedisCache implements Cache using Redis. Keys share the memcached prefix
// and values are JSON-encoded WeatherData.
type RedisCache struct {
	client *redisv9.Client
}

// NewRedisCache creates a RedisCache for addr (default "localhost:6379").
// A positive timeout sets the dial, read and write timeouts.
func NewRedisCache(addr string, timeout time.Duration) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	opts := &redisv9.Options{Addr: addr}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	return &RedisCache{client: redisv9.NewClient(opts)}, nil
}

// Get returns false, nil on cache miss; false, err on error.
func (c *RedisCache) Get(ctx context.Context, key string) (models.WeatherData, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	switch {
	case errors.Is(err, redisv9.Nil):
		return models.WeatherData{}, false, nil
	case err != nil:
		return models.WeatherData{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	data, err := decodeEntry(key, raw)
	if err != nil {
		return models.WeatherData{}, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error {
	raw, err := encodeEntry(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks if redis is reachable. Used for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
