package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func okHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

func TestRouteLabels(t *testing.T) {
	tests := []struct {
		pattern    string
		wantModule string
		wantRoute  string
	}{
		{pattern: "POST /api/v1/capa/detect", wantModule: "capa", wantRoute: "/api/v1/capa/detect"},
		{pattern: "GET /api/v1/ws/detections", wantModule: "ws", wantRoute: "/api/v1/ws/detections"},
		{pattern: "GET /api/v1/health", wantModule: "core", wantRoute: "/api/v1/health"},
		{pattern: "GET /api/v1/plugins", wantModule: "core", wantRoute: "/api/v1/plugins"},
		{pattern: "/api/v1/", wantModule: "core", wantRoute: "/api/v1/"},
		{pattern: "GET /healthz", wantModule: "core", wantRoute: "/healthz"},
		{pattern: "GET /swagger/", wantModule: "core", wantRoute: "/swagger/"},
		{pattern: "", wantModule: "none", wantRoute: "unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			module, route := routeLabels(tt.pattern)
			if module != tt.wantModule || route != tt.wantRoute {
				t.Errorf("routeLabels(%q) = (%q, %q), want (%q, %q)",
					tt.pattern, module, route, tt.wantModule, tt.wantRoute)
			}
		})
	}
}

func TestRequestContextMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = plugin.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", http.NoBody))

	id := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID: %v", id, err)
	}
	if seen != id {
		t.Errorf("context request ID = %q, want %q", seen, id)
	}
}

func TestRequestContextMiddleware_ClientID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "printable", header: "my-trace-id", keep: true},
		{name: "with space", header: "my trace", keep: false},
		{name: "control byte", header: "id\x01", keep: false},
		{name: "too long", header: string(make([]byte, 129)), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestContextMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = plugin.RequestID(r.Context())
			}))

			req := httptest.NewRequest("GET", "/test", http.NoBody)
			req.Header.Set("X-Request-ID", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := seen == tt.header; got != tt.keep {
				t.Errorf("kept client ID = %v, want %v (context ID %q)", got, tt.keep, seen)
			}
			if w.Header().Get("X-Request-ID") != seen {
				t.Errorf("response X-Request-ID = %q, want %q", w.Header().Get("X-Request-ID"), seen)
			}
		})
	}
}

// serveThroughMux runs a request through the access log and a mux holding a
// single pattern, the way the server wires them.
func serveThroughMux(logger *zap.Logger, pattern string, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	w := httptest.NewRecorder()
	Chain(mux, RequestContextMiddleware, AccessLogMiddleware(logger)).ServeHTTP(w, req)
	return w
}

func TestAccessLogMiddleware_LabelsByModule(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues("capa", "/api/v1/capa/detect", "POST", "201")
	before := promtest.ToFloat64(counter)

	core, logs := observer.New(zapcore.DebugLevel)
	req := httptest.NewRequest("POST", "/api/v1/capa/detect", http.NoBody)
	w := serveThroughMux(zap.New(core), "POST /api/v1/capa/detect", okHandler(http.StatusCreated), req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := promtest.ToFloat64(counter) - before; got != 1 {
		t.Errorf("requests counted = %v, want 1", got)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", e.Level)
	}
	fields := e.ContextMap()
	if fields["module"] != "capa" {
		t.Errorf("module = %v, want capa", fields["module"])
	}
	if fields["request_id"] != w.Header().Get("X-Request-ID") {
		t.Errorf("request_id = %v, want %q", fields["request_id"], w.Header().Get("X-Request-ID"))
	}
}

func TestAccessLogMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		status  int
		want    zapcore.Level
	}{
		{name: "health check", pattern: "GET /healthz", path: "/healthz", status: http.StatusOK, want: zapcore.DebugLevel},
		{name: "scrape", pattern: "GET /metrics", path: "/metrics", status: http.StatusOK, want: zapcore.DebugLevel},
		{name: "failing readiness check", pattern: "GET /readyz", path: "/readyz", status: http.StatusServiceUnavailable, want: zapcore.WarnLevel},
		{name: "api", pattern: "GET /api/v1/capa/defaults", path: "/api/v1/capa/defaults", status: http.StatusOK, want: zapcore.InfoLevel},
		{name: "server error", pattern: "POST /api/v1/capa/detect", path: "/api/v1/capa/detect", status: http.StatusInternalServerError, want: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			method, _, _ := strings.Cut(tt.pattern, " ")
			serveThroughMux(zap.New(core), tt.pattern, okHandler(tt.status), httptest.NewRequest(method, tt.path, http.NoBody))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.want {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.want)
			}
		})
	}
}

func TestAccessLogMiddleware_Unmatched(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues("none", "unmatched", "GET", "404")
	before := promtest.ToFloat64(counter)

	req := httptest.NewRequest("GET", "/nowhere", http.NoBody)
	w := serveThroughMux(testLogger(t), "GET /healthz", okHandler(http.StatusOK), req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := promtest.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unmatched requests counted = %v, want 1", got)
	}
}

func TestResponseHeadersMiddleware(t *testing.T) {
	handler := ResponseHeadersMiddleware(okHandler(http.StatusOK))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/capa/defaults", http.NoBody))

	tests := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Referrer-Policy", "no-referrer"},
	}
	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
	if v := w.Header().Get("X-Capa-Version"); v == "" {
		t.Error("expected X-Capa-Version header to be set")
	}
}

func TestResponseHeadersMiddleware_SwaggerKeepsDefaultCSP(t *testing.T) {
	handler := ResponseHeadersMiddleware(okHandler(http.StatusOK))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/swagger/index.html", http.NoBody))

	if csp := w.Header().Get("Content-Security-Policy"); csp != "" {
		t.Errorf("Content-Security-Policy = %q, want none for swagger UI", csp)
	}
}

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	handler := RecoveryMiddleware(testLogger(t))(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content-type = %q, want %q", ct, "application/problem+json")
	}
}

func TestRecoveryMiddleware_PanicAfterWriteKeepsResponse(t *testing.T) {
	handler := RecoveryMiddleware(testLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late panic")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", http.NoBody))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if ct := w.Header().Get("Content-Type"); ct == "application/problem+json" {
		t.Error("problem body appended to a response already in flight")
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := RecoveryMiddleware(testLogger(t))(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", v)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", http.NoBody))
}

func TestChain(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	})

	Chain(inner, mw("mw1"), mw("mw2")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", http.NoBody))

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("execution order = %v, want %v", order, expected)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], expected[i])
		}
	}
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusNotFound)

	if rec.status != http.StatusCreated {
		t.Errorf("status = %d, want %d (first call should win)", rec.status, http.StatusCreated)
	}
}

func TestStatusRecorder_HijackWithoutSupport(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	if _, _, err := rec.Hijack(); err == nil {
		t.Error("Hijack() on a recorder: expected error")
	}
	if rec.Unwrap() == nil {
		t.Error("Unwrap() returned nil")
	}
}

func TestMiddleware_AllowsWebSocketUpgrade(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		_ = conn.Write(r.Context(), typ, data)
		conn.Close(websocket.StatusNormalClosure, "")
	})

	handler := Chain(echo,
		RecoveryMiddleware(testLogger(t)),
		RequestContextMiddleware,
		AccessLogMiddleware(testLogger(t)),
	)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx := t.Context()
	conn, _, err := websocket.Dial(ctx, "ws"+ts.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_, got, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "ping" {
		t.Errorf("echo = %q, want %q", got, "ping")
	}
}
