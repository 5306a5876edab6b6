// Package service ties the fetcher, parser and cache into one scrape operation.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bbc-weather-scraper/internal/cache"
	"github.com/kjstillabower/bbc-weather-scraper/internal/client"
	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/observability"
	"github.com/kjstillabower/bbc-weather-scraper/internal/parser"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

// Config holds optional Scraper settings.
type Config struct {
	// Cache is consulted by location id before fetching. nil disables caching.
	Cache     cache.Cache
	CacheTTL  time.Duration
	CacheType string
	// CoalesceTimeout bounds a shared scrape. Zero disables coalescing.
	CoalesceTimeout time.Duration
	Logger          *zap.Logger
}

// Scraper fetches, parses and caches forecasts for one location at a time.
type Scraper struct {
	fetcher   client.Fetcher
	parser    *parser.Parser
	cache     cache.Cache
	ttl       time.Duration
	cacheType string
	coalescer *requestCoalescer
	logger    *zap.Logger
}

func NewScraper(fetcher client.Fetcher, p *parser.Parser, cfg Config) *Scraper {
	if p == nil {
		p = parser.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CacheType == "" {
		cfg.CacheType = "weather"
	}
	var coalescer *requestCoalescer
	if cfg.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(cfg.CoalesceTimeout)
	}
	return &Scraper{
		fetcher:   fetcher,
		parser:    p,
		cache:     cfg.Cache,
		ttl:       cfg.CacheTTL,
		cacheType: cfg.CacheType,
		coalescer: coalescer,
		logger:    cfg.Logger,
	}
}

// loggerFromContext returns the request-scoped logger if the HTTP layer set one.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Scrape returns the forecast for loc. The result carries loc.ID, and
// loc.Name when set; otherwise the name resolved from the page title.
func (s *Scraper) Scrape(ctx context.Context, loc models.Location) (models.WeatherData, error) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	logger = logger.With(zap.String("location_id", loc.ID))
	start := time.Now()

	if loc.ID == "" {
		err := scrapeerr.LocationNotFound("location id is required", nil)
		observability.RecordScrape(loc.Name, string(scrapeerr.Categorize(err)))
		return models.WeatherData{}, err
	}

	data, cached, err := s.lookup(ctx, loc.ID, logger)
	if err != nil {
		category := scrapeerr.Categorize(err)
		observability.RecordScrape(metricLocation(loc), string(category))
		logger.Warn("scrape failed",
			zap.String("category", string(category)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return models.WeatherData{}, fmt.Errorf("scrape %s: %w", loc.ID, err)
	}

	if loc.Name != "" {
		data.LocationName = loc.Name
	}
	observability.RecordScrape(metricLocation(loc), "success")
	logger.Info("weather scraped",
		zap.String("location", data.DisplayName()),
		zap.Bool("cached", cached),
		zap.Int("hourly_reports", len(data.HourlyForecast)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// lookup is cache-aside around fetchAndParse, keyed by location id.
func (s *Scraper) lookup(ctx context.Context, id string, logger *zap.Logger) (models.WeatherData, bool, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			logger.Warn("cache get failed", zap.Error(err))
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues(s.cacheType).Inc()
			logger.Debug("cache hit")
			return cached, true, nil
		}
	}

	var (
		data models.WeatherData
		err  error
	)
	if s.coalescer != nil {
		var shared bool
		data, shared, err = s.coalescer.Do(ctx, id, func(ctx context.Context) (models.WeatherData, error) {
			return s.fetchAndParse(ctx, id)
		})
		if shared {
			logger.Debug("joined in-flight scrape")
		}
	} else {
		data, err = s.fetchAndParse(ctx, id)
	}
	if err != nil {
		return models.WeatherData{}, false, err
	}

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, id, data, s.ttl); setErr != nil {
			logger.Warn("cache set failed", zap.Error(setErr))
		}
	}
	return data, false, nil
}

// fetchAndParse loads the page for id and parses it. LocationName is the
// name resolved from the page, if any.
func (s *Scraper) fetchAndParse(ctx context.Context, id string) (models.WeatherData, error) {
	page, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		return models.WeatherData{}, err
	}

	parseStart := time.Now()
	data, err := s.parser.Parse(page.HTML, "")
	observability.ParseDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		observability.ParseErrorsTotal.WithLabelValues(string(scrapeerr.Categorize(err))).Inc()
		return models.WeatherData{}, err
	}
	observability.HourlyReportsParsed.Observe(float64(len(data.HourlyForecast)))

	data.LocationID = id
	if name, ok := parser.ResolveDisplayName(page.HTML); ok {
		data.LocationName = name
	}
	return data, nil
}

func metricLocation(loc models.Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	return loc.ID
}
