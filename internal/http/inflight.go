package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests that have entered the router but not yet returned.
// Shutdown drains it after the listener stops accepting connections.
type InFlightTracker struct {
	count atomic.Int64
}

func (t *InFlightTracker) Increment() { t.count.Add(1) }
func (t *InFlightTracker) Decrement() { t.count.Add(-1) }

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// Drain polls every checkInterval until the count is zero or ctx is done.
// It returns the count left behind, with ctx.Err() when the wait was cut short.
func (t *InFlightTracker) Drain(ctx context.Context, checkInterval time.Duration) (int64, error) {
	if checkInterval <= 0 {
		checkInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		n := t.Count()
		if n <= 0 {
			return 0, nil
		}
		select {
		case <-ctx.Done():
			return t.Count(), ctx.Err()
		case <-ticker.C:
		}
	}
}

var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests currently inside the router.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// DrainInFlight waits for requests handled by MetricsMiddleware to finish.
func DrainInFlight(ctx context.Context, checkInterval time.Duration) (int64, error) {
	return globalInFlightTracker.Drain(ctx, checkInterval)
}
