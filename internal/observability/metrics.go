package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultTrackedCommands are the command names sent by the dashboard and gamepad bindings.
var DefaultTrackedCommands = []string{"forward", "backward", "left", "right", "stop", "mode_change", "power"}

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (dashboard polling storms).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p99 increases; every route is CPU-only.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Synthetic samples produced, by kind (live, history).
	SamplesGeneratedTotal *prometheus.CounterVec

	// Commands received by name (allow-list; others go to "other", missing name to "none").
	CommandsReceivedTotal *prometheus.CounterVec

	// Command payloads by decoder (json, form, empty). Watch for: empty = clients sending bad bodies.
	CommandPayloadsTotal *prometheus.CounterVec

	// Page render failures by page. Any non-zero value is a broken deploy.
	TemplateRenderErrorsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	trackedCommandsMu sync.RWMutex
	trackedCommands   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	SamplesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplesGeneratedTotal",
			Help: "Synthetic telemetry payloads generated, by kind",
		},
		[]string{"kind"},
	)
	CommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commandsReceivedTotal",
			Help: "Commands received (allow-list; others use command=other)",
		},
		[]string{"command"},
	)
	CommandPayloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commandPayloadsTotal",
			Help: "Command payloads by the decoder that produced them",
		},
		[]string{"source"},
	)
	TemplateRenderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "templateRenderErrorsTotal",
			Help: "Page template render failures",
		},
		[]string{"page"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		SamplesGeneratedTotal,
		CommandsReceivedTotal, CommandPayloadsTotal,
		TemplateRenderErrorsTotal,
		RateLimitDeniedTotal,
	)

	SetTrackedCommands(DefaultTrackedCommands)
}

// SetTrackedCommands sets the allow-list for command metrics. Non-tracked commands increment "other".
func SetTrackedCommands(commands []string) {
	trackedCommandsMu.Lock()
	defer trackedCommandsMu.Unlock()
	trackedCommands = make(map[string]struct{}, len(commands))
	for _, c := range commands {
		trackedCommands[normalizeCommandForMetrics(c)] = struct{}{}
	}
}

// RecordCommand records a command payload: its decoder source and its command name.
func RecordCommand(name, source string) {
	CommandPayloadsTotal.WithLabelValues(source).Inc()
	CommandsReceivedTotal.WithLabelValues(commandLabel(name)).Inc()
}

func commandLabel(name string) string {
	c := normalizeCommandForMetrics(name)
	if c == "" {
		return "none"
	}
	trackedCommandsMu.RLock()
	_, ok := trackedCommands[c]
	trackedCommandsMu.RUnlock()
	if ok {
		return c
	}
	return "other"
}

func normalizeCommandForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
