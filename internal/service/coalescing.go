package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// inFlightScrape is one scrape that several callers may wait on.
type inFlightScrape struct {
	done   chan struct{}
	result models.WeatherData
	err    error
}

// requestCoalescer runs at most one scrape per key at a time. Callers that
// arrive while a scrape is running share its result.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightScrape
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightScrape),
		timeout:  timeout,
	}
}

// Do returns the result of fn for key, starting it only when no scrape for
// key is in flight. fn runs detached from any single caller's cancellation,
// bounded by the coalescer timeout. shared reports whether the caller joined
// an existing scrape.
func (rc *requestCoalescer) Do(ctx context.Context, key string, fn func(context.Context) (models.WeatherData, error)) (data models.WeatherData, shared bool, err error) {
	rc.mu.Lock()
	call, exists := rc.inFlight[key]
	if !exists {
		call = &inFlightScrape{done: make(chan struct{})}
		rc.inFlight[key] = call
		go rc.run(ctx, key, call, fn)
	}
	rc.mu.Unlock()

	select {
	case <-call.done:
		return call.result, exists, call.err
	case <-ctx.Done():
		return models.WeatherData{}, exists, ctx.Err()
	}
}

func (rc *requestCoalescer) run(ctx context.Context, key string, call *inFlightScrape, fn func(context.Context) (models.WeatherData, error)) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
	defer cancel()

	call.result, call.err = fn(runCtx)

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()
	close(call.done)
}
