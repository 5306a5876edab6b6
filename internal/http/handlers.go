package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
	"github.com/kjstillabower/bbc-weather-scraper/internal/traffic"
	"github.com/kjstillabower/bbc-weather-scraper/internal/validation"
)

// WeatherScraper is the scrape operation the handlers serve.
type WeatherScraper interface {
	Scrape(ctx context.Context, loc models.Location) (models.WeatherData, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	scraper WeatherScraper
	logger  *zap.Logger

	// CachePing, when set, is called to check cache reachability on /health.
	CachePing func(ctx context.Context) error
	// UpstreamState, when set, reports the fetch circuit breaker state
	// ("closed", "open" or "half_open"). An open breaker makes /health degraded.
	UpstreamState func() string
	// DegradedErrorPct reports /health as degraded once this share of the
	// scrapes in the traffic window failed upstream. Zero disables the check.
	DegradedErrorPct int

	traffic *traffic.Tracker

	minLen int
	maxLen int

	draining         atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. Location length limits default to the
// validation package defaults when zero.
func NewHandler(scraper WeatherScraper, logger *zap.Logger, minLen, maxLen int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minLen <= 0 {
		minLen = validation.DefaultMinLength
	}
	if maxLen <= 0 {
		maxLen = validation.DefaultMaxLength
	}
	return &Handler{
		scraper: scraper,
		logger:  logger,
		minLen:  minLen,
		maxLen:  maxLen,
		traffic: traffic.New(time.Minute),
	}
}

// SetTrafficWindow replaces the outcome tracker with one over window.
func (h *Handler) SetTrafficWindow(window time.Duration) {
	h.traffic = traffic.New(window)
}

// SetDraining marks the process as shutting down. /health reports 503 while set.
func (h *Handler) SetDraining(v bool) {
	h.draining.Store(v)
}

// GetWeather handles GET /weather/{location}. location is a known place name
// or a numeric BBC location id.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	loc, err := validation.ParseLocation(mux.Vars(r)["location"], h.minLen, h.maxLen)
	if err != nil {
		if validation.IsInvalid(err) {
			writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
			return
		}
		writeScrapeError(w, r, err)
		return
	}

	data, err := h.scraper.Scrape(r.Context(), loc)
	if err != nil {
		if countsAsUpstreamFailure(err) {
			h.traffic.RecordError()
		}
		writeScrapeError(w, r, err)
		return
	}
	h.traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, data)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.traffic.Snapshot()
	upstream := ""
	if h.UpstreamState != nil {
		upstream = h.UpstreamState()
	}
	status, statusCode := "healthy", http.StatusOK
	switch {
	case h.draining.Load():
		status, statusCode = "shutting-down", http.StatusServiceUnavailable
	case upstream == "open":
		status, statusCode = "degraded", http.StatusServiceUnavailable
	case h.DegradedErrorPct > 0 && stats.Total() > 0 && stats.ErrorPct() >= float64(h.DegradedErrorPct):
		status, statusCode = "degraded", http.StatusServiceUnavailable
	}

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.CachePing != nil {
		if err := h.CachePing(r.Context()); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}
	if upstream != "" {
		checks["upstream"] = upstream
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "bbc-weather-scraper",
		"version":   "dev",
		"checks":    checks,
		"traffic": map[string]interface{}{
			"window":   h.traffic.Window().String(),
			"scrapes":  stats.Total(),
			"errors":   stats.Errors,
			"denied":   stats.Denied,
			"errorPct": stats.ErrorPct(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// recordDenied is the rate limiter's denial hook.
func (h *Handler) recordDenied() {
	h.traffic.RecordDenied()
}

// countsAsUpstreamFailure excludes outcomes caused by the caller: unknown
// locations and cancelled requests.
func countsAsUpstreamFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return scrapeerr.Categorize(err) != scrapeerr.CategoryLocationNotFound
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with code, message and the
// request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// requestLogger returns the logger CorrelationIDMiddleware stored, or a no-op.
func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// writeScrapeError maps a scrape failure to a status code by error category.
func writeScrapeError(w http.ResponseWriter, r *http.Request, err error) {
	category := scrapeerr.Categorize(err)
	status, code, message := scrapeErrorResponse(category)
	requestLogger(r).Debug("scrape error", zap.String("category", string(category)), zap.Error(err))
	if status == http.StatusNotFound {
		message = err.Error()
	}
	writeError(w, r, status, code, message)
}

func scrapeErrorResponse(category scrapeerr.Category) (int, string, string) {
	switch category {
	case scrapeerr.CategoryLocationNotFound:
		return http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found"
	case scrapeerr.CategoryValidation:
		return http.StatusUnprocessableEntity, "INVALID_FORECAST", "Forecast data failed validation"
	case scrapeerr.CategoryTimeout:
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Timed out fetching weather data"
	case scrapeerr.CategoryDataExtraction, scrapeerr.CategoryParsing:
		return http.StatusBadGateway, "EXTRACTION_FAILED", "Unable to read forecast from BBC Weather page"
	case scrapeerr.CategoryBrowser, scrapeerr.CategoryNetwork,
		scrapeerr.CategoryRateLimited, scrapeerr.CategoryUpstream5xx:
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error"
	}
}
