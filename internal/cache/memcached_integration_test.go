//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// liveMemcached returns a cache against MEMCACHED_ADDRS (default localhost)
// and skips the test when no server answers.
func liveMemcached(t *testing.T) *MemcachedCache {
	t.Helper()
	addrs := os.Getenv("MEMCACHED_ADDRS")
	if addrs == "" {
		addrs = defaultMemcachedAddr
	}
	c, err := NewMemcachedCache(addrs, 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache(%q): %v", addrs, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("memcached not reachable at %s: %v", addrs, err)
	}
	return c
}

func TestMemcachedCache_Integration(t *testing.T) {
	c := liveMemcached(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		want := sampleWeather("2643743")
		if err := c.Set(ctx, want.LocationID, want, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, ok, err := c.Get(ctx, want.LocationID)
		if err != nil || !ok {
			t.Fatalf("Get = ok %v err %v, want hit", ok, err)
		}
		if got.LocationName != want.LocationName || len(got.HourlyForecast) != len(want.HourlyForecast) {
			t.Errorf("Get = %+v, want %+v", got, want)
		}
	})

	t.Run("miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "0000000000")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Error("Get ok = true for a key never set")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, _, err := c.Get(cctx, "2643743"); err == nil {
			t.Error("Get with cancelled context returned nil error")
		}
	})
}
