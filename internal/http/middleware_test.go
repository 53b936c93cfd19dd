package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rover-telemetry-service/internal/observability"
	"github.com/kjstillabower/rover-telemetry-service/internal/traffic"
)

func TestCorrelationID_EchoedWhenSupplied(t *testing.T) {
	srv := newTestServer(t, serverOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set(CorrelationIDHeader, "rover-abc")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get(CorrelationIDHeader); got != "rover-abc" {
		t.Errorf("%s = %q, want rover-abc", CorrelationIDHeader, got)
	}
}

func TestCorrelationID_GeneratedWhenMissing(t *testing.T) {
	srv := newTestServer(t, serverOpts{})

	w := srv.do(http.MethodGet, "/api/data", nil, "")
	got := w.Header().Get(CorrelationIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("%s = %q, want a UUID: %v", CorrelationIDHeader, got, err)
	}
}

func TestCorrelationID_AvailableInContext(t *testing.T) {
	var gotID string
	var gotLogger *zap.Logger
	h := CorrelationIDMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = CorrelationIDFromContext(r.Context())
		gotLogger = LoggerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "ctx-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotID != "ctx-1" {
		t.Errorf("CorrelationIDFromContext = %q, want ctx-1", gotID)
	}
	if gotLogger == nil {
		t.Error("LoggerFromContext = nil, want request logger")
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := CorrelationIDFromContext(req.Context()); id != "" {
		t.Errorf("CorrelationIDFromContext = %q, want empty", id)
	}
	if l := LoggerFromContext(req.Context()); l != nil {
		t.Error("LoggerFromContext != nil on bare context")
	}
}

// TestRateLimit_DeniesAPIAndCommand verifies the shared limiter guards /api and /command
// but leaves pages and health alone.
func TestRateLimit_DeniesAPIAndCommand(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	srv := newTestServer(t, serverOpts{limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	deniedBefore := counterValue(t, observability.RateLimitDeniedTotal)

	if w := srv.do(http.MethodGet, "/api/data", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("first GET /api/data status = %d, want 200", w.Code)
	}

	w := srv.do(http.MethodGet, "/api/history", nil, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("GET /api/history status = %d, want 429", w.Code)
	}
	resp := decodeBody[map[string]map[string]string](t, w)
	if resp["error"]["code"] != "RATE_LIMITED" {
		t.Errorf("error.code = %q, want RATE_LIMITED", resp["error"]["code"])
	}

	if w := srv.do(http.MethodPost, "/command", nil, ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("POST /command status = %d, want 429", w.Code)
	}
	if w := srv.do(http.MethodGet, "/", nil, ""); w.Code != http.StatusOK {
		t.Errorf("GET / status = %d, want 200 (not rate limited)", w.Code)
	}

	if d := counterValue(t, observability.RateLimitDeniedTotal) - deniedBefore; d != 2 {
		t.Errorf("rateLimitDeniedTotal delta = %v, want 2", d)
	}
	if n := traffic.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount = %d, want 2", n)
	}
	// served: /api/data and /; denials are counted once, by the limiter.
	if n := traffic.RequestCount(time.Minute); n != 4 {
		t.Errorf("RequestCount = %d, want 4", n)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	h := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data", nil))
	if !called {
		t.Error("handler not called with nil limiter")
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	const timeout = 2 * time.Second
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(timeout)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	before := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data", nil))
	after := time.Now()

	if !ok {
		t.Fatal("request context has no deadline")
	}
	if deadline.Before(before.Add(timeout)) || deadline.After(after.Add(timeout)) {
		t.Errorf("deadline = %v, want between %v and %v", deadline, before.Add(timeout), after.Add(timeout))
	}
}

func TestMetricsMiddleware_RecordsOutcome(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests} {
		h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data", nil))
	}

	failed, total := traffic.ErrorRate(time.Minute)
	if failed != 1 || total != 3 {
		t.Errorf("ErrorRate = %d/%d, want 1/3", failed, total)
	}
}

// TestMetricsMiddleware_PanicCountsAsFailure verifies a panic recovered by Wrap is
// recorded as a 5xx outcome.
func TestMetricsMiddleware_PanicCountsAsFailure(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	failures := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "5xx")
	before := counterValue(t, failures)
	inFlight := InFlightCount()

	h := Wrap(MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("motor stalled")
	})), zap.NewNop(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if failed, total := traffic.ErrorRate(time.Minute); failed != 1 || total != 1 {
		t.Errorf("ErrorRate = %d/%d, want 1/1", failed, total)
	}
	if d := counterValue(t, failures) - before; d != 1 {
		t.Errorf("httpRequestsTotal{5xx} delta = %v, want 1", d)
	}
	if got := InFlightCount(); got != inFlight {
		t.Errorf("in-flight after panic = %d, want %d", got, inFlight)
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 404: "4xx", 429: "4xx", 500: "5xx"}
	for code, want := range tests {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestWrap_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("wheel fell off")
	}), zap.New(core), nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	entries := logs.FilterMessage("panic recovered").All()
	if len(entries) != 1 {
		t.Fatalf("panic logs = %d, want 1", len(entries))
	}
	if entries[0].ContextMap()["panic"] != "wheel fell off" {
		t.Errorf("panic field = %v, want wheel fell off", entries[0].ContextMap()["panic"])
	}
}

func TestWrap_CORS(t *testing.T) {
	srv := newTestServer(t, serverOpts{})
	h := Wrap(srv.router, zap.NewNop(), []string{"http://rover.local"})

	tests := []struct {
		origin string
		want   string
	}{
		{"http://rover.local", "http://rover.local"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("origin %s: status = %d, want 200", tt.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Access-Control-Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestWrap_NoCORSWithoutOrigins(t *testing.T) {
	srv := newTestServer(t, serverOpts{})
	h := Wrap(srv.router, zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Origin", "http://rover.local")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}
