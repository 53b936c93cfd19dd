// Package traffic keeps sliding windows of request outcomes for the health endpoint.
package traffic

import (
	"sync"
	"time"

	"github.com/kjstillabower/rover-telemetry-service/internal/clock"
)

// retention bounds memory: outcomes older than this are dropped regardless of window.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(nil)

// RecordServed records a request answered with a non-5xx status.
func RecordServed() {
	defaultTracker.RecordServed()
}

// RecordFailed records a request answered with a 5xx status.
func RecordFailed() {
	defaultTracker.RecordFailed()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns served + failed + denied within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (failed, served+failed) within the window.
func ErrorRate(window time.Duration) (failed, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	clock  clock.Clock
	mu     sync.Mutex
	served []time.Time
	failed []time.Time
	denied []time.Time
}

// NewTracker returns a Tracker reading time from c (system clock if nil).
func NewTracker(c clock.Clock) *Tracker {
	if c == nil {
		c = clock.System{}
	}
	return &Tracker{clock: c}
}

// RecordServed records a request answered with a non-5xx status.
func (t *Tracker) RecordServed() { t.record(&t.served) }

// RecordFailed records a request answered with a 5xx status.
func (t *Tracker) RecordFailed() { t.record(&t.failed) }

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() { t.record(&t.denied) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns served + failed + denied within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	return countSince(t.served, cutoff) + countSince(t.failed, cutoff) + countSince(t.denied, cutoff)
}

// DenialCount returns the number of denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, t.clock.Now().Add(-window))
}

// ErrorRate returns failed and served + failed within the window. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (failed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	failed = countSince(t.failed, cutoff)
	return failed, failed + countSince(t.served, cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.served, t.failed, t.denied = nil, nil, nil
}

// countSince counts timestamps strictly after cutoff.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, slice := range []*[]time.Time{&t.served, &t.failed, &t.denied} {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
}
