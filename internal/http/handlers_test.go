package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/bbc-weather-scraper/internal/client"
	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/parser"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
	"github.com/kjstillabower/bbc-weather-scraper/internal/service"
	"github.com/kjstillabower/bbc-weather-scraper/internal/testhelpers"
)

type stubScraper struct {
	mu    sync.Mutex
	data  models.WeatherData
	err   error
	calls []models.Location
	block bool // if set, Scrape waits for ctx.Done()
}

func (s *stubScraper) Scrape(ctx context.Context, loc models.Location) (models.WeatherData, error) {
	s.mu.Lock()
	s.calls = append(s.calls, loc)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return models.WeatherData{}, ctx.Err()
	}
	if s.err != nil {
		return models.WeatherData{}, s.err
	}
	data := s.data
	data.LocationID = loc.ID
	if loc.Name != "" {
		data.LocationName = loc.Name
	}
	return data, nil
}

type pageFetcher struct {
	pages map[string]string
}

func (f *pageFetcher) Initialize(ctx context.Context) error { return nil }
func (f *pageFetcher) Close() error                         { return nil }

func (f *pageFetcher) Fetch(ctx context.Context, locationID string) (client.Page, error) {
	html, ok := f.pages[locationID]
	if !ok {
		return client.Page{}, scrapeerr.LocationNotFound(fmt.Sprintf("no page for %s", locationID), nil)
	}
	return client.Page{URL: "file://" + locationID, StatusCode: http.StatusOK, HTML: html}, nil
}

func newTestRouter(h *Handler) http.Handler {
	return NewRouter(h, zap.NewNop(), ServerConfig{RequestTimeout: 5 * time.Second})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Error map[string]string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestGetWeather_KnownName(t *testing.T) {
	scraper := &stubScraper{}
	h := NewHandler(scraper, zap.NewNop(), 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/weather/London", nil)
	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(scraper.calls) != 1 {
		t.Fatalf("scrape calls = %d, want 1", len(scraper.calls))
	}
	if got := scraper.calls[0]; got.ID != "2643743" || got.Name != "London" {
		t.Errorf("scraped location = %+v, want id 2643743 name London", got)
	}

	var data models.WeatherData
	if err := json.NewDecoder(w.Body).Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.LocationID != "2643743" {
		t.Errorf("location_id = %q, want 2643743", data.LocationID)
	}
}

func TestGetWeather_NumericID(t *testing.T) {
	scraper := &stubScraper{}
	h := NewHandler(scraper, zap.NewNop(), 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/weather/2653822", nil)
	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := scraper.calls[0]; got.ID != "2653822" || got.Name != "Cardiff" {
		t.Errorf("scraped location = %+v, want Cardiff by id", got)
	}
}

func TestGetWeather_InvalidLocation(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"too short", "/weather/a"},
		{"invalid characters", "/weather/london%3B"},
		{"id too long", "/weather/1234567890123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraper := &stubScraper{}
			h := NewHandler(scraper, zap.NewNop(), 0, 0)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if code := decodeErrorBody(t, w)["code"]; code != "INVALID_LOCATION" {
				t.Errorf("error code = %q, want INVALID_LOCATION", code)
			}
			if len(scraper.calls) != 0 {
				t.Errorf("scrape called for invalid location")
			}
		})
	}
}

func TestGetWeather_UnknownNameListsKnownNames(t *testing.T) {
	h := NewHandler(&stubScraper{}, zap.NewNop(), 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/weather/atlantis", nil)
	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decodeErrorBody(t, w)
	if body["code"] != "LOCATION_NOT_FOUND" {
		t.Errorf("error code = %q, want LOCATION_NOT_FOUND", body["code"])
	}
	if !strings.Contains(body["message"], "london") {
		t.Errorf("message %q does not list known locations", body["message"])
	}
}

func TestGetWeather_ErrorStatusByCategory(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not found", scrapeerr.LocationNotFound("no such page", nil), http.StatusNotFound, "LOCATION_NOT_FOUND"},
		{"validation", scrapeerr.Validation("no forecast data", nil), http.StatusUnprocessableEntity, "INVALID_FORECAST"},
		{"data extraction", scrapeerr.DataExtraction("no payload", nil), http.StatusBadGateway, "EXTRACTION_FAILED"},
		{"parser", scrapeerr.Parser("panic", nil), http.StatusBadGateway, "EXTRACTION_FAILED"},
		{"browser", scrapeerr.Browser("exhausted 3 attempts", nil), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"upstream 5xx", scrapeerr.Browser("HTTP 503", scrapeerr.ErrUpstreamFailure), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"timeout", fmt.Errorf("scrape 1: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubScraper{err: tt.err}, zap.NewNop(), 0, 0)

			req := httptest.NewRequest(http.MethodGet, "/weather/london", nil)
			req.Header.Set("X-Correlation-ID", "req-1")
			w := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			body := decodeErrorBody(t, w)
			if body["code"] != tt.wantBody {
				t.Errorf("error code = %q, want %q", body["code"], tt.wantBody)
			}
			if body["requestId"] != "req-1" {
				t.Errorf("requestId = %q, want req-1", body["requestId"])
			}
		})
	}
}

func TestGetWeather_RequestTimeout(t *testing.T) {
	h := NewHandler(&stubScraper{block: true}, zap.NewNop(), 0, 0)
	router := NewRouter(h, zap.NewNop(), ServerConfig{RequestTimeout: 20 * time.Millisecond})

	req := httptest.NewRequest(http.MethodGet, "/weather/leeds", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", w.Code, http.StatusGatewayTimeout)
	}
}

func TestGetWeather_ThroughScraper(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"2643123": testhelpers.ForecastPage("2643123", "Manchester"),
	}}
	scraper := service.NewScraper(fetcher, parser.New(), service.Config{Logger: zap.NewNop()})
	h := NewHandler(scraper, zap.NewNop(), 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/weather/manchester", nil)
	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var data models.WeatherData
	if err := json.NewDecoder(w.Body).Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.LocationName != "Manchester" {
		t.Errorf("location_name = %q, want Manchester", data.LocationName)
	}
	if len(data.HourlyForecast) != 4 {
		t.Errorf("hourly reports = %d, want 4", len(data.HourlyForecast))
	}
	if data.CurrentConditions == nil {
		t.Error("current conditions missing")
	}
}

func TestGetHealth(t *testing.T) {
	h := NewHandler(&stubScraper{}, zap.NewNop(), 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["service"] != "bbc-weather-scraper" {
		t.Errorf("service = %v, want bbc-weather-scraper", body["service"])
	}
}

func TestGetHealth_CacheCheck(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		want    string
	}{
		{"reachable", nil, "healthy"},
		{"unreachable", errors.New("dial tcp: connection refused"), "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubScraper{}, zap.NewNop(), 0, 0)
			h.CachePing = func(ctx context.Context) error { return tt.pingErr }

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(w, req)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Checks["cache"] != tt.want {
				t.Errorf("checks.cache = %q, want %q", body.Checks["cache"], tt.want)
			}
			if body.Status != "healthy" {
				t.Errorf("status = %q, want healthy", body.Status)
			}
		})
	}
}

func TestGetHealth_UpstreamBreaker(t *testing.T) {
	tests := []struct {
		state      string
		wantStatus string
		wantCode   int
	}{
		{"closed", "healthy", http.StatusOK},
		{"half_open", "healthy", http.StatusOK},
		{"open", "degraded", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			h := NewHandler(&stubScraper{}, zap.NewNop(), 0, 0)
			h.UpstreamState = func() string { return tt.state }

			w := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if w.Code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("health = %d %q, want %d %q", w.Code, body.Status, tt.wantCode, tt.wantStatus)
			}
			if body.Checks["upstream"] != tt.state {
				t.Errorf("checks.upstream = %q, want %q", body.Checks["upstream"], tt.state)
			}
		})
	}
}

func TestGetHealth_DrainingLogsTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(&stubScraper{}, zap.New(core), 0, 0)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	h.SetDraining(true)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["current_status"]; got != "shutting-down" {
		t.Errorf("current_status = %v, want shutting-down", got)
	}
}

func TestGetHealth_DegradedOnUpstreamErrorRate(t *testing.T) {
	scraper := &stubScraper{err: scrapeerr.DataExtraction("no payload", nil)}
	h := NewHandler(scraper, zap.NewNop(), 0, 0)
	h.DegradedErrorPct = 50
	router := newTestRouter(h)

	// Unknown names are the caller's fault and do not count against health.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/atlantis", nil))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health after not-found = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/london", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("weather status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var body struct {
		Status  string `json:"status"`
		Traffic struct {
			Scrapes int `json:"scrapes"`
			Errors  int `json:"errors"`
		} `json:"traffic"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Traffic.Scrapes != 1 || body.Traffic.Errors != 1 {
		t.Errorf("traffic = %+v, want 1 scrape 1 error", body.Traffic)
	}
}
