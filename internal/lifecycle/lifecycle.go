package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	ready        atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetReady marks the service as ready (or not) to receive traffic.
// Health handler returns 503 with status starting until ready.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports whether SetReady(true) has been called.
func IsReady() bool {
	return ready.Load()
}

// MarkReadyAfter sets the ready flag once delay has elapsed; immediately if delay <= 0.
// The returned timer may be stopped to cancel.
func MarkReadyAfter(delay time.Duration) *time.Timer {
	if delay <= 0 {
		SetReady(true)
		return nil
	}
	return time.AfterFunc(delay, func() { SetReady(true) })
}
