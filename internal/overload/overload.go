// Package overload decides whether recent request volume is close to rate-limit capacity.
package overload

import (
	"time"

	"github.com/kjstillabower/rover-telemetry-service/internal/traffic"
)

// Threshold is the request count within window above which the service is overloaded:
// rps * window * pct / 100. It is zero when no capacity is defined.
func Threshold(rps int, window time.Duration, pct int) float64 {
	if rps <= 0 || window <= 0 || pct <= 0 {
		return 0
	}
	return float64(rps) * window.Seconds() * float64(pct) / 100
}

// Exceeded reports whether served, failed and denied requests within window are above
// Threshold. Without a rate limit there is no capacity to exceed.
func Exceeded(rps int, window time.Duration, pct int) bool {
	limit := Threshold(rps, window, pct)
	if limit == 0 {
		return false
	}
	return float64(traffic.RequestCount(window)) > limit
}
