package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

const (
	defaultMemcachedAddr = "localhost:11211"
	// Memcached reads expirations above 30 days as unix timestamps.
	maxRelativeExpiration = 30 * 24 * time.Hour
	fallbackExpiration    = time.Hour
)

// MemcachedCache stores forecasts in one or more memcached servers.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache connects lazily to addrs, a comma-separated server list.
// Zero timeout or maxIdleConns keep the gomemcache defaults.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{defaultMemcachedAddr}
	}
	ss := new(memcache.ServerList)
	if err := ss.SetServers(servers...); err != nil {
		return nil, fmt.Errorf("memcached servers %q: %w", addrs, err)
	}
	client := memcache.NewFromSelector(ss)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcachedExpiration converts ttl to whole seconds, using one hour for
// non-positive or over-long TTLs.
func memcachedExpiration(ttl time.Duration) int32 {
	if ttl < time.Second || ttl > maxRelativeExpiration {
		ttl = fallbackExpiration
	}
	return int32(ttl / time.Second)
}

// Get reports a miss as ok=false with a nil error. gomemcache has no context
// support, so ctx is only checked before the call.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherData, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherData{}, false, err
	}
	item, err := c.client.Get(cacheKey(key))
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		return models.WeatherData{}, false, nil
	case err != nil:
		return models.WeatherData{}, false, fmt.Errorf("memcached get %s: %w", key, err)
	}
	data, err := decodeEntry(key, item.Value)
	if err != nil {
		return models.WeatherData{}, false, err
	}
	return data, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntry(value)
	if err != nil {
		return err
	}
	item := &memcache.Item{Key: cacheKey(key), Value: raw, Expiration: memcachedExpiration(ttl)}
	if err := c.client.Set(item); err != nil {
		return fmt.Errorf("memcached set %s: %w", key, err)
	}
	return nil
}

// Ping checks that every configured server answers.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Ping()
}

func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
