package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/rover-telemetry-service/internal/command"
	"github.com/kjstillabower/rover-telemetry-service/internal/degraded"
	"github.com/kjstillabower/rover-telemetry-service/internal/lifecycle"
	"github.com/kjstillabower/rover-telemetry-service/internal/models"
	"github.com/kjstillabower/rover-telemetry-service/internal/observability"
	"github.com/kjstillabower/rover-telemetry-service/internal/overload"
	"github.com/kjstillabower/rover-telemetry-service/internal/render"
)

// TelemetrySource produces synthetic readings. Implementations must be safe for concurrent use.
type TelemetrySource interface {
	Live() models.LiveSample
	History() models.HistorySeries
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	source           TelemetrySource
	renderer         render.Renderer
	healthConfig     *HealthConfig
	logger           *zap.Logger
	commandMaxBytes  int64
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. commandMaxBytes <= 0 uses command.DefaultMaxBodyBytes.
func NewHandler(
	source TelemetrySource,
	renderer render.Renderer,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	commandMaxBytes int64,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		source:          source,
		renderer:        renderer,
		healthConfig:    healthConfig,
		logger:          logger,
		commandMaxBytes: commandMaxBytes,
	}
}

// GetDashboard handles GET /.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, render.PageDashboard)
}

// GetHistoryPage handles GET /history.
func (h *Handler) GetHistoryPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, render.PageHistory)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, page string) {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, page); err != nil {
		observability.TemplateRenderErrorsTotal.WithLabelValues(page).Inc()
		h.requestLogger(r).Error("render page", zap.String("page", page), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "TEMPLATE_UNAVAILABLE", "Unable to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetLiveData handles GET /api/data. Every call produces a new sample.
func (h *Handler) GetLiveData(w http.ResponseWriter, r *http.Request) {
	sample := h.source.Live()
	observability.SamplesGeneratedTotal.WithLabelValues("live").Inc()
	writeJSON(w, http.StatusOK, sample)
}

// GetHistoryData handles GET /api/history. The series is rebuilt on every call.
func (h *Handler) GetHistoryData(w http.ResponseWriter, r *http.Request) {
	series := h.source.History()
	observability.SamplesGeneratedTotal.WithLabelValues("history").Inc()
	writeJSON(w, http.StatusOK, series)
}

// PostCommand handles POST /command. The parsed payload is echoed back; unparseable
// bodies are acknowledged with an empty payload.
func (h *Handler) PostCommand(w http.ResponseWriter, r *http.Request) {
	payload, source := command.Parse(r, h.commandMaxBytes)
	name := command.Name(payload)
	observability.RecordCommand(name, string(source))
	h.requestLogger(r).Info("command received",
		zap.String("command", name),
		zap.String("source", string(source)),
		zap.Int("fields", len(payload)))
	writeJSON(w, http.StatusOK, models.CommandAck{OK: true, Received: payload})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"templates": "healthy"}
	if err := h.renderer.Render(io.Discard, render.PageDashboard); err != nil {
		checks["templates"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "rover-telemetry-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "ready_delay"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	cfg := h.healthConfig
	if overload.Exceeded(cfg.RateLimitRPS, cfg.OverloadWindow, cfg.OverloadThresholdPct) {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if degraded.Breached(cfg.DegradedWindow, cfg.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	if l := LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return h.logger
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationIDFromContext(r.Context()),
		},
	})
}
