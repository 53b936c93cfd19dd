package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rover-telemetry-service/internal/observability"
	"github.com/kjstillabower/rover-telemetry-service/internal/render"
)

// NewRouter registers every route. The limiter (nil to disable) and request timeout
// apply to /api and /command only. Those routes sit on the root router so that a
// method mismatch answers 405.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.GetDashboard).Methods(http.MethodGet)
	router.HandleFunc("/history", h.GetHistoryPage).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(render.StaticHandler()).Methods(http.MethodGet)

	limited := func(next http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(limiter)(TimeoutMiddleware(requestTimeout)(next))
	}

	router.Handle("/api/data", limited(h.GetLiveData)).Methods(http.MethodGet)
	router.Handle("/api/history", limited(h.GetHistoryData)).Methods(http.MethodGet)
	router.Handle("/command", limited(h.PostCommand)).Methods(http.MethodPost)

	return router
}
