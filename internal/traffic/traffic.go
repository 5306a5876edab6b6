// Package traffic keeps a sliding window of scrape outcomes for serve-mode
// health reporting.
package traffic

import (
	"sync"
	"time"
)

// Stats counts outcomes inside the window.
type Stats struct {
	Successes int
	Errors    int
	Denied    int
}

// Total is successes plus errors; denials are not scrapes.
func (s Stats) Total() int { return s.Successes + s.Errors }

// ErrorPct is the error share of Total as a percentage, 0 when idle.
func (s Stats) ErrorPct() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(s.Total())
}

// Tracker records outcome timestamps and forgets those older than its window.
// The zero value is not usable; call New.
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	successes []time.Time
	errors    []time.Time
	denied    []time.Time
}

// New returns a Tracker over window. A non-positive window defaults to one minute.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = time.Minute
	}
	return &Tracker{window: window, now: time.Now}
}

// Window returns the tracking window.
func (t *Tracker) Window() time.Duration { return t.window }

// RecordSuccess records a completed scrape.
func (t *Tracker) RecordSuccess() { t.record(&t.successes) }

// RecordError records a scrape that failed upstream (fetch, extraction, timeout).
func (t *Tracker) RecordError() { t.record(&t.errors) }

// RecordDenied records a request rejected by the rate limiter.
func (t *Tracker) RecordDenied() { t.record(&t.denied) }

func (t *Tracker) record(times *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*times = append(*times, now)
	t.pruneLocked(now)
}

// Snapshot returns the counts inside the window.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return Stats{Successes: len(t.successes), Errors: len(t.errors), Denied: len(t.denied)}
}

// Reset forgets every recorded outcome.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.errors, t.denied = nil, nil, nil
}

// pruneLocked drops timestamps before now-window. Timestamps are appended in
// order, so each slice is trimmed from the front. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	for _, times := range []*[]time.Time{&t.successes, &t.errors, &t.denied} {
		s := *times
		i := 0
		for i < len(s) && s[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*times = append(s[:0], s[i:]...)
		}
	}
}
