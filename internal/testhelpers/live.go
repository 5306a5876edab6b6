//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/client"
)

// LiveConfig holds configuration for tests against the real BBC Weather site.
type LiveConfig struct {
	BaseURL string
}

// GetLiveConfig loads live test configuration from environment.
// Skips the test unless BBC_WEATHER_LIVE is set.
func GetLiveConfig(t *testing.T) LiveConfig {
	if os.Getenv("BBC_WEATHER_LIVE") == "" {
		t.Skip("BBC_WEATHER_LIVE not set, skipping live test")
	}
	baseURL := os.Getenv("BBC_WEATHER_BASE_URL")
	if baseURL == "" {
		baseURL = client.DefaultBaseURL
	}
	return LiveConfig{BaseURL: baseURL}
}

// SetupLiveFetcher returns an initialized HTTP fetcher and a cleanup function.
func SetupLiveFetcher(t *testing.T, cfg LiveConfig) (client.Fetcher, func()) {
	f := client.NewHTTPFetcher(client.Options{
		BaseURL:           cfg.BaseURL,
		Timeout:           45 * time.Second,
		RetryAttempts:     2,
		RequestsPerMinute: 10,
	})
	if err := f.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return f, func() { _ = f.Close() }
}
