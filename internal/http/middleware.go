package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rover-telemetry-service/internal/observability"
	"github.com/kjstillabower/rover-telemetry-service/internal/traffic"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	loggerKey
)

// CorrelationIDHeader carries the request correlation ID in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDFromContext returns the request's correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext returns the request-scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return nil
}

func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get(CorrelationIDHeader)
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set(CorrelationIDHeader, corrID)

			ctx := context.WithValue(r.Context(), correlationIDKey, corrID)
			ctx = context.WithValue(ctx, loggerKey, logger.With(zap.String("correlation_id", corrID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request metrics, the in-flight count and the outcome
// windows used by /health. Health and metrics scrapes are not counted as traffic.
// A panicking handler is recorded as a 500 before the panic reaches RecoveryHandler.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		completed := false
		defer func() {
			globalInFlightTracker.Decrement()
			observability.HTTPRequestsInFlight.Dec()

			status := recorder.statusCode
			if !completed {
				status = http.StatusInternalServerError
			}
			recordOutcome(r, status, time.Since(start))
		}()

		next.ServeHTTP(recorder, r)
		completed = true
	})
}

func recordOutcome(r *http.Request, status int, elapsed time.Duration) {
	route := getRoute(r)
	observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(status)).Inc()
	observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

	switch {
	case route == "/health" || route == "/metrics":
	case status == http.StatusTooManyRequests:
		// counted by RateLimitMiddleware
	case status >= 500:
		traffic.RecordFailed()
	default:
		traffic.RecordServed()
	}
}

// getRoute returns the matched route template so that labels stay low-cardinality.
func getRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware sets a deadline on the request context.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware returns 429 when the token bucket is exhausted. Disabled when limiter is nil.
func RateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if logger := LoggerFromContext(r.Context()); logger != nil {
					logger.Debug("rate limit denied")
				}
				traffic.RecordDenied()
				observability.RateLimitDeniedTotal.Inc()
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryLogger adapts zap to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", zap.String("panic", fmt.Sprint(v...)))
}

// Wrap applies the outer handler chain: panic recovery (500) and, when origins
// are configured, CORS.
func Wrap(next http.Handler, logger *zap.Logger, corsOrigins []string) http.Handler {
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(false),
	)(next)
	if len(corsOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(corsOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", CorrelationIDHeader}),
			handlers.ExposedHeaders([]string{CorrelationIDHeader}),
		)(h)
	}
	return h
}
