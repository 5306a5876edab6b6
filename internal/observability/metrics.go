package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate in serve mode.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95 approaching the page fetch timeout.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Requests rejected by the serve-mode rate limiter.
	RateLimitDeniedTotal prometheus.Counter

	// Scrape outcomes. result is "success" or an error category.
	ScrapesTotal *prometheus.CounterVec

	// Scrapes per location (allow-list; others go to "other").
	ScrapesByLocationTotal *prometheus.CounterVec

	// BBC Weather page fetches by HTTP status class.
	PageFetchesTotal *prometheus.CounterVec

	// Page fetch latency. Watch for: p95 > 10s (upstream degradation).
	PageFetchDuration *prometheus.HistogramVec

	// Retry attempts for page fetches. Watch for: high retries = unstable upstream.
	PageFetchRetriesTotal prometheus.Counter

	// Time spent extracting and normalising the embedded payload.
	ParseDuration prometheus.Histogram

	// Parse failures by category (data_extraction, validation, parsing).
	ParseErrorsTotal *prometheus.CounterVec

	// Hourly reports per successful parse. Watch for: sudden drop to a handful (page layout change).
	HourlyReportsParsed prometheus.Histogram

	// Cache hits by backend.
	CacheHitsTotal *prometheus.CounterVec

	// Files written by format and result.
	StorageWritesTotal *prometheus.CounterVec

	// Circuit breaker state (0 closed, 1 open, 2 half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests rejected with 429 by the rate limiter",
		},
	)
	ScrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapesTotal",
			Help: "Total number of scrapes by result (success or error category)",
		},
		[]string{"result"},
	)
	ScrapesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapesByLocationTotal",
			Help: "Scrapes by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	PageFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageFetchesTotal",
			Help: "Total number of BBC Weather page fetches",
		},
		[]string{"status"},
	)
	PageFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pageFetchDurationSeconds",
			Help:    "BBC Weather page fetch latency in seconds (per request)",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"status"},
	)
	PageFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pageFetchRetriesTotal",
			Help: "Total number of retry attempts for page fetches",
		},
	)
	ParseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parseDurationSeconds",
			Help:    "Time to extract and normalise the embedded forecast payload",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
	)
	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parseErrorsTotal",
			Help: "Total number of parse failures by category",
		},
		[]string{"category"},
	)
	HourlyReportsParsed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hourlyReportsParsed",
			Help:    "Number of hourly reports in each successful parse",
			Buckets: []float64{1, 12, 24, 48, 96, 168, 336},
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits. Cache misses = scrapesTotal - cacheHitsTotal.",
		},
		[]string{"cacheType"},
	)
	StorageWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storageWritesTotal",
			Help: "Total number of forecast files written",
		},
		[]string{"format", "result"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half_open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight, RateLimitDeniedTotal,
		ScrapesTotal, ScrapesByLocationTotal,
		PageFetchesTotal, PageFetchDuration, PageFetchRetriesTotal,
		ParseDuration, ParseErrorsTotal, HourlyReportsParsed,
		CacheHitsTotal, StorageWritesTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordScrape records the outcome of one scrape. result is "success" or an error category.
func RecordScrape(location, result string) {
	ScrapesTotal.WithLabelValues(result).Inc()
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if ok {
		ScrapesByLocationTotal.WithLabelValues(loc).Inc()
	} else {
		ScrapesByLocationTotal.WithLabelValues("other").Inc()
	}
}

func normalizeLocationForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
