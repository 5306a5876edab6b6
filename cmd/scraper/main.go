package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/bbc-weather-scraper/internal/cache"
	"github.com/kjstillabower/bbc-weather-scraper/internal/circuitbreaker"
	"github.com/kjstillabower/bbc-weather-scraper/internal/client"
	"github.com/kjstillabower/bbc-weather-scraper/internal/config"
	httphandler "github.com/kjstillabower/bbc-weather-scraper/internal/http"
	"github.com/kjstillabower/bbc-weather-scraper/internal/locations"
	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/observability"
	"github.com/kjstillabower/bbc-weather-scraper/internal/parser"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
	"github.com/kjstillabower/bbc-weather-scraper/internal/service"
	"github.com/kjstillabower/bbc-weather-scraper/internal/storage"
	"github.com/kjstillabower/bbc-weather-scraper/internal/validation"
)

const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	serve        bool
	location     string
	locationID   string
	locationName string
	engine       string
	format       string
	output       string
	logLevel     string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	if len(args) > 0 && args[0] == "serve" {
		opts.serve = true
		args = args[1:]
	}

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: scraper [serve] [flags]\n\nScrapes the BBC Weather forecast for one location and saves it.\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.location, "location", "", "location name (e.g. London, Manchester)")
	fs.StringVar(&opts.locationID, "location-id", "", "BBC Weather location id")
	fs.StringVar(&opts.locationName, "location-name", "", "display name, used with -location-id")
	fs.StringVar(&opts.engine, "engine", "", "fetch engine: http or file (default from config)")
	fs.StringVar(&opts.format, "format", "", "output format: json or csv (default from config)")
	fs.StringVar(&opts.output, "output", "", "output filename without extension")
	fs.StringVar(&opts.logLevel, "log-level", "", "DEBUG, INFO, WARNING or ERROR (default LOG_LEVEL or INFO)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, err := observability.NewLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return exitError
	}
	defer func() { _ = observability.FlushTelemetry(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if opts.engine != "" {
		cfg.FetchEngine = strings.ToLower(opts.engine)
	}
	if opts.format != "" {
		cfg.StorageFormat = strings.ToLower(opts.format)
	}

	if opts.serve {
		return runServe(ctx, cfg, logger, stderr)
	}
	return runOnce(ctx, cfg, opts, logger, stdout, stderr)
}

// resolveLocation picks the location from -location-id or -location.
func resolveLocation(opts options) (models.Location, error) {
	if opts.locationID != "" {
		id, err := validation.ValidateLocationID(opts.locationID)
		if err != nil {
			return models.Location{}, err
		}
		loc := models.Location{ID: id, Name: opts.locationName}
		if known, ok := locations.ByID(id); ok && loc.Name == "" {
			loc = known
		}
		return loc, nil
	}
	if opts.location == "" {
		return models.Location{}, errors.New("specify -location or -location-id")
	}
	return locations.Lookup(opts.location)
}

func runOnce(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger, stdout, stderr io.Writer) int {
	loc, err := resolveLocation(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, scrapeerr.ErrLocationNotFound) {
			fmt.Fprintf(stderr, "Available: %s\n", strings.Join(locations.Names(), ", "))
		}
		return exitError
	}

	store, err := storage.New(cfg.StorageFormat, cfg.OutputDir, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	deps, err := buildScraper(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer deps.close()

	logger.Info("scraping weather", zap.String("location", loc.Name), zap.String("location_id", loc.ID), zap.String("engine", cfg.FetchEngine))
	data, err := deps.scraper.Scrape(ctx, loc)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("scraping interrupted")
			fmt.Fprintln(stderr, "\n[INTERRUPTED] Cancelled by user")
			return exitInterrupted
		}
		logger.Error("scraping failed", zap.Error(err))
		fmt.Fprintf(stderr, "\n[ERROR] %v\n", err)
		return exitError
	}

	path, err := store.Save(data, opts.output)
	if err != nil {
		logger.Error("save failed", zap.Error(err))
		fmt.Fprintf(stderr, "\n[ERROR] %v\n", err)
		return exitError
	}
	logger.Info("weather data saved", zap.String("path", path), zap.Int("hourly_reports", len(data.HourlyForecast)))

	fmt.Fprintf(stdout, "[SUCCESS] Weather data scraped for %s\n", data.DisplayName())
	fmt.Fprintf(stdout, "[OUTPUT] Saved to: %s\n", path)
	return exitOK
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger, stderr io.Writer) int {
	deps, err := buildScraper(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer deps.close()

	tracked := cfg.TrackedLocations
	if len(tracked) == 0 {
		tracked = locations.Names()
	}
	observability.SetTrackedLocations(tracked)

	handler := httphandler.NewHandler(deps.scraper, logger, validation.DefaultMinLength, validation.DefaultMaxLength)
	if p, ok := deps.cache.(interface{ Ping(context.Context) error }); ok {
		handler.CachePing = p.Ping
	}
	if deps.breaker != nil {
		handler.UpstreamState = func() string { return deps.breaker.State().String() }
	}
	handler.SetTrafficWindow(cfg.TrafficWindow)
	handler.DegradedErrorPct = cfg.DegradedErrorPct
	srv := httphandler.NewServer(handler, logger, httphandler.ServerConfig{
		Port:            cfg.ServerPort,
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		DrainDelay:      cfg.DrainDelay,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Error("server", zap.Error(err))
		return exitError
	}
	logger.Info("shutdown complete")
	return exitOK
}

type scraperDeps struct {
	scraper *service.Scraper
	fetcher client.Fetcher
	cache   cache.Cache
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func (d *scraperDeps) close() {
	if err := d.fetcher.Close(); err != nil {
		d.logger.Error("fetcher close", zap.Error(err))
	}
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			d.logger.Error("cache close", zap.Error(err))
		}
	}
}

// buildScraper wires the circuit breaker, fetcher, cache and parser into a Scraper.
// The fetcher is initialized; callers must close the result.
func buildScraper(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*scraperDeps, error) {
	var breaker *circuitbreaker.CircuitBreaker
	if cfg.CircuitBreakerEnabled && cfg.FetchEngine == client.EngineHTTP {
		const component = "bbc_weather"
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        component,
			ShouldTrip:       scrapeerr.Retryable,
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.CircuitBreakerTransitionsTotal.WithLabelValues(component, from.String(), to.String()).Inc()
				observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		observability.CircuitBreakerState.WithLabelValues(component).Set(float64(circuitbreaker.StateClosed))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	fetcher, err := client.New(cfg.FetchEngine, client.Options{
		BaseURL:           cfg.BaseURL,
		UserAgent:         cfg.UserAgent,
		Locale:            cfg.Locale,
		Timeout:           cfg.FetchTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Breaker:           breaker,
		SnapshotDir:       cfg.SnapshotDir,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	if err := fetcher.Initialize(ctx); err != nil {
		return nil, err
	}

	cacheSvc, err := cache.New(cfg.CacheBackend, cache.Options{
		MemcachedAddrs: cfg.MemcachedAddrs,
		RedisAddr:      cfg.RedisAddr,
		Timeout:        cfg.MemcachedTimeout,
		MaxIdleConns:   cfg.MemcachedMaxIdleConns,
	})
	if err != nil {
		_ = fetcher.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	scraper := service.NewScraper(fetcher, parser.New(), service.Config{
		Cache:           cacheSvc,
		CacheTTL:        cfg.CacheTTL,
		CacheType:       cfg.CacheBackend,
		CoalesceTimeout: cfg.CoalesceTimeout,
		Logger:          logger,
	})
	return &scraperDeps{scraper: scraper, fetcher: fetcher, cache: cacheSvc, breaker: breaker, logger: logger}, nil
}
