// Package client fetches BBC Weather forecast pages.
package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bbc-weather-scraper/internal/circuitbreaker"
)

// Fetch engines accepted by New.
const (
	EngineHTTP = "http"
	EngineFile = "file"
)

// DefaultBaseURL is the forecast page root; pages live at <base>/<locationID>.
const DefaultBaseURL = "https://www.bbc.com/weather"

// Page is a fetched forecast page.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
}

// Fetcher loads the forecast page for a location id. Callers Initialize
// before the first Fetch and Close when done.
type Fetcher interface {
	Initialize(ctx context.Context) error
	Fetch(ctx context.Context, locationID string) (Page, error)
	Close() error
}

// Options configures the fetchers. Fields a given engine does not use are ignored.
type Options struct {
	BaseURL           string
	UserAgent         string
	Locale            string
	Timeout           time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerMinute int
	Breaker           *circuitbreaker.CircuitBreaker
	SnapshotDir       string
	Logger            *zap.Logger
}

// New returns the fetcher for engine.
func New(engine string, opts Options) (Fetcher, error) {
	switch engine {
	case EngineHTTP, "":
		return NewHTTPFetcher(opts), nil
	case EngineFile:
		return NewFileFetcher(opts.SnapshotDir), nil
	default:
		return nil, fmt.Errorf("unknown fetch engine %q (want %s or %s)", engine, EngineHTTP, EngineFile)
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}
