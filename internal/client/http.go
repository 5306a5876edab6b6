package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bbc-weather-scraper/internal/circuitbreaker"
	"github.com/kjstillabower/bbc-weather-scraper/internal/observability"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultLocale    = "en-GB"
	maxPageBytes     = 10 << 20
)

// HTTPFetcher loads forecast pages over HTTP with rate limiting, retries
// and an optional circuit breaker.
type HTTPFetcher struct {
	baseURL        string
	userAgent      string
	locale         string
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger

	mu     sync.Mutex
	client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher. Zero options get defaults; a
// non-positive RequestsPerMinute disables rate limiting.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Locale == "" {
		opts.Locale = defaultLocale
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	return &HTTPFetcher{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		userAgent:      opts.UserAgent,
		locale:         opts.Locale,
		timeout:        opts.Timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		limiter:        rate.NewLimiter(limit, 1),
		breaker:        opts.Breaker,
		logger:         opts.Logger,
	}
}

// Initialize checks the base URL and prepares the HTTP client.
func (f *HTTPFetcher) Initialize(ctx context.Context) error {
	u, err := url.Parse(f.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return scrapeerr.Browser(fmt.Sprintf("invalid base URL %q", f.baseURL), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return nil
}

// Close releases idle connections. The fetcher can be initialized again.
func (f *HTTPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.CloseIdleConnections()
		f.client = nil
	}
	return nil
}

// Fetch loads the page for locationID. Timeouts, network errors, 429 and 5xx
// responses are retried with exponential backoff; a 404 is reported as
// location not found and everything else as a browser error.
func (f *HTTPFetcher) Fetch(ctx context.Context, locationID string) (Page, error) {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()
	if client == nil {
		return Page{}, scrapeerr.Browser("fetcher not initialized", nil)
	}

	var lastErr error
	for attempt := 0; attempt < f.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.PageFetchRetriesTotal.Inc()
			delay := f.calculateBackoff(attempt)
			f.logger.Warn("retrying page fetch",
				zap.String("location_id", locationID),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return Page{}, scrapeerr.Browser("page fetch cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		page, err := f.attempt(ctx, client, locationID)
		if err == nil {
			return page, nil
		}

		lastErr = err
		if !scrapeerr.Retryable(err) {
			return Page{}, err
		}
	}

	return Page{}, scrapeerr.Browser(fmt.Sprintf("exhausted %d attempts", f.retryAttempts), lastErr)
}

func (f *HTTPFetcher) attempt(ctx context.Context, client *http.Client, locationID string) (Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, scrapeerr.Browser("rate limiter wait", ctxErr)
		}
		return Page{}, scrapeerr.Browser("rate limiter wait", fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
	}

	if f.breaker == nil {
		return f.callPage(ctx, client, locationID)
	}

	var page Page
	err := f.breaker.Call(ctx, func() error {
		var err error
		page, err = f.callPage(ctx, client, locationID)
		return err
	})
	if errors.Is(err, scrapeerr.ErrCircuitOpen) {
		return Page{}, scrapeerr.Browser("BBC Weather unavailable", err)
	}
	return page, err
}

func (f *HTTPFetcher) callPage(ctx context.Context, client *http.Client, locationID string) (Page, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := f.buildRequest(reqCtx, locationID)
	if err != nil {
		observability.PageFetchesTotal.WithLabelValues("error").Inc()
		return Page{}, scrapeerr.Browser("build request", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.PageFetchesTotal.WithLabelValues("error").Inc()
		observability.PageFetchDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Page{}, scrapeerr.Browser("page load timeout", err)
		}
		return Page{}, scrapeerr.Browser("http request failed", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.PageFetchesTotal.WithLabelValues(status).Inc()
	observability.PageFetchDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp, locationID); err != nil {
		return Page{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, scrapeerr.Browser("read response body", err)
	}

	return Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, locationID string) (*http.Request, error) {
	if locationID == "" {
		return nil, errors.New("empty location id")
	}
	pageURL := f.baseURL + "/" + url.PathEscape(locationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage(f.locale))
	return req, nil
}

func handleErrorResponse(resp *http.Response, locationID string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return scrapeerr.LocationNotFound(fmt.Sprintf("BBC Weather has no page for location %s", locationID), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return scrapeerr.Browser("HTTP 429", scrapeerr.ErrRateLimited)
	case resp.StatusCode >= 500:
		return scrapeerr.Browser(fmt.Sprintf("HTTP %d", resp.StatusCode), scrapeerr.ErrUpstreamFailure)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return scrapeerr.Browser(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

func (f *HTTPFetcher) calculateBackoff(attempt int) time.Duration {
	delay := float64(f.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(f.retryMaxDelay) {
		delay = float64(f.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// acceptLanguage turns "en-GB" into "en-GB,en;q=0.9".
func acceptLanguage(locale string) string {
	lang, _, found := strings.Cut(locale, "-")
	if !found || lang == "" {
		return locale
	}
	return locale + "," + lang + ";q=0.9"
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode == 404 {
		return "not_found"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
