// Package circuitbreaker stops page fetches against an upstream that keeps failing.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after repeated failures and lets probe calls through
// once the timeout has passed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	shouldTrip       func(error) bool
	onStateChange    func(component string, from, to State)
	now              func() time.Time
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// ShouldTrip decides whether an error counts as a failure. Errors it
	// rejects are returned to the caller without touching the counters.
	// Defaults to counting every non-nil error.
	ShouldTrip    func(error) bool
	OnStateChange func(component string, from, to State)
}

// New creates a CircuitBreaker. Zero thresholds and timeout get defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		shouldTrip:       cfg.ShouldTrip,
		onStateChange:    cfg.OnStateChange,
		now:              time.Now,
	}
}

// Call runs fn when the circuit allows it. While open it fails fast with
// scrapeerr.ErrCircuitOpen; after the timeout the next calls run as
// half-open probes.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return nil
	}
	if wait := cb.timeout - cb.now().Sub(cb.openedAt); wait > 0 {
		return fmt.Errorf("%s (retry in %s): %w", cb.component, wait.Round(time.Second), scrapeerr.ErrCircuitOpen)
	}
	cb.successCount = 0
	cb.transition(StateHalfOpen)
	return nil
}

// record updates the counters with the outcome of one call. Errors rejected
// by shouldTrip count as neither failure nor success.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err != nil && cb.shouldTrip(err):
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.failureCount = 0
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
		}
	case err != nil:
	default:
		cb.failureCount = 0
		if cb.state != StateHalfOpen {
			return
		}
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.successCount = 0
			cb.transition(StateClosed)
		}
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(cb.component, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
