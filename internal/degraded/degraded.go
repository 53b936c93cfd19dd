// Package degraded decides whether the recent 5xx rate is high enough to report degraded health.
package degraded

import (
	"time"

	"github.com/kjstillabower/rover-telemetry-service/internal/traffic"
)

// ErrorPercent returns the share of failed requests among served and failed requests
// within window, in percent. Rate-limit denials are not part of the total.
func ErrorPercent(window time.Duration) float64 {
	failed, total := traffic.ErrorRate(window)
	if total == 0 {
		return 0
	}
	return float64(failed) * 100 / float64(total)
}

// Breached reports whether ErrorPercent within window is at least pct. Disabled when
// window or pct is not positive.
func Breached(window time.Duration, pct int) bool {
	if window <= 0 || pct <= 0 {
		return false
	}
	return ErrorPercent(window) >= float64(pct)
}
