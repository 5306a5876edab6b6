// Package cache stores parsed forecasts by location id so repeated requests
// within the TTL skip the page fetch.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// Backends accepted by New.
const (
	BackendNone      = "none"
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Cache defines the interface for forecast caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherData, bool, error)
	Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error
	Close() error
}

// Options configures the networked backends.
type Options struct {
	MemcachedAddrs string
	RedisAddr      string
	Timeout        time.Duration
	MaxIdleConns   int
}

// New returns the cache for backend. BackendNone returns a nil Cache, which
// callers treat as caching disabled.
func New(backend string, opts Options) (Cache, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendInMemory:
		return NewInMemoryCache(), nil
	case BackendMemcached:
		return NewMemcachedCache(opts.MemcachedAddrs, opts.Timeout, opts.MaxIdleConns)
	case BackendRedis:
		return NewRedisCache(opts.RedisAddr, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.WeatherData
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (data, true, nil) on a hit and (zero, false, nil) on a miss or
// an expired entry, which is deleted.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherData, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.WeatherData{}, false, nil
	}

	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.WeatherData{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores data in cache with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Close() error { return nil }
