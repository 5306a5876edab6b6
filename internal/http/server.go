// Package http serves scrapes over HTTP for the scraper's serve mode.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bbc-weather-scraper/internal/observability"
)

// ServerConfig holds serve-mode settings.
type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// RateLimitRPS of zero disables the /weather rate limiter.
	RateLimitRPS   int
	RateLimitBurst int
	// DrainDelay keeps the listener open after shutdown starts so load
	// balancers can see /health report shutting-down.
	DrainDelay time.Duration
}

// inFlightCounter counts requests currently being served.
type inFlightCounter struct {
	n atomic.Int64
}

func (c *inFlightCounter) add(delta int64) { c.n.Add(delta) }

func (c *inFlightCounter) count() int64 { return c.n.Load() }

// waitForZero blocks until the count reaches zero or ctx is done.
func (c *inFlightCounter) waitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if c.count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

var inFlight = &inFlightCounter{}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return inFlight.count()
}

// NewRouter wires the handlers and middleware. /weather is rate limited and
// bounded by cfg.RequestTimeout; /health and /metrics are not.
func NewRouter(h *Handler, logger *zap.Logger, cfg ServerConfig) *mux.Router {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(RateLimitMiddleware(limiter, h.recordDenied))
	if cfg.RequestTimeout > 0 {
		weatherRouter.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	weatherRouter.HandleFunc("/{location}", h.GetWeather).Methods(http.MethodGet)
	return router
}

// Server runs the HTTP listener and drains it on shutdown.
type Server struct {
	srv     *http.Server
	handler *Handler
	logger  *zap.Logger
	cfg     ServerConfig
}

func NewServer(h *Handler, logger *zap.Logger, cfg ServerConfig) *Server {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	writeTimeout := 10 * time.Second
	if cfg.RequestTimeout > 0 {
		writeTimeout = cfg.RequestTimeout + 5*time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      NewRouter(h, logger, cfg),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
		},
		handler: h,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run serves until ctx is cancelled. It then marks the handler draining,
// keeps serving for DrainDelay, stops accepting connections and waits up to
// the shutdown timeout for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("graceful shutdown triggered")
	s.handler.SetDraining(true)
	if s.cfg.DrainDelay > 0 {
		s.logger.Info("draining before shutdown", zap.Duration("delay", s.cfg.DrainDelay))
		t := time.NewTimer(s.cfg.DrainDelay)
		<-t.C
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown", zap.Error(err))
	}

	s.logger.Info("waiting for in-flight requests", zap.Int64("count", InFlightCount()))
	if err := inFlight.waitForZero(shutdownCtx, 50*time.Millisecond); err != nil {
		s.logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", InFlightCount()))
	}
	return nil
}
