package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/capa/internal/version"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HTTP metrics. Labels come from the matched route table, never from the raw
// URL, so detection traffic can be told apart from health checks and the
// event feed without unbounded cardinality.
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capa_http_requests_total",
			Help: "HTTP requests by module, route, method and status.",
		},
		[]string{"module", "route", "method", "status"},
	)
	// Detection requests run for seconds, so the buckets reach well past the
	// client default of 10s.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capa_http_request_duration_seconds",
			Help:    "HTTP request duration by module and route.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"module", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order (first argument is outermost).
func Chain(handler http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// moduleCore labels the server's own routes; moduleNone labels requests no
// route matched.
const (
	moduleCore = "core"
	moduleNone = "none"
)

// routeLabels maps a mux pattern such as "POST /api/v1/capa/detect" to its
// module ("capa") and route ("/api/v1/capa/detect").
func routeLabels(pattern string) (module, route string) {
	if pattern == "" {
		return moduleNone, "unmatched"
	}
	route = pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok || rest == "" {
		return moduleCore, route
	}
	module, _, _ = strings.Cut(rest, "/")
	switch module {
	case "health", "plugins":
		return moduleCore, route
	}
	return module, route
}

// RequestContextMiddleware assigns each request an ID and stores it in the
// context, where modules read it with plugin.RequestID. A client-supplied
// X-Request-ID is kept when it is short printable ASCII.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(plugin.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// quietRoutes are polled by orchestrators and scrapers; their access lines
// go to debug.
var quietRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// AccessLogMiddleware records the HTTP metrics and writes one access line per
// request. Health checks and scrapes log at debug and server errors at warn.
// It must sit inside RequestContextMiddleware and pass the request to the mux
// unchanged, so the pattern the mux matched is visible afterwards.
func AccessLogMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			module, route := routeLabels(r.Pattern)
			httpRequestsTotal.WithLabelValues(module, route, r.Method, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(module, route).Observe(elapsed.Seconds())

			level := zapcore.InfoLevel
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = zapcore.WarnLevel
			case quietRoutes[route]:
				level = zapcore.DebugLevel
			}
			if ce := logger.Check(level, "http request"); ce != nil {
				ce.Write(
					zap.String("module", module),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.status),
					zap.Duration("duration", elapsed),
					zap.String("request_id", plugin.RequestID(r.Context())),
				)
			}
		})
	}
}

// ResponseHeadersMiddleware sets the version and security headers. The API
// serves only JSON and websockets, so everything but Swagger UI gets a
// deny-all content security policy.
func ResponseHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Capa-Version", version.Short())
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if !strings.HasPrefix(r.URL.Path, "/swagger/") {
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a handler panic into a 500 problem response.
// Nothing is written when the handler had already started its response.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic",
					zap.Any("panic", v),
					zap.String("path", r.URL.Path),
					zap.String("request_id", plugin.RequestID(r.Context())),
					zap.Stack("stack"),
				)
				if !rec.wroteHeader {
					InternalError(w, "an unexpected error occurred", r.URL.Path)
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// statusRecorder captures the response status for the access log and the
// recovery handler. It passes hijacking through for websocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", w.ResponseWriter)
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return hj.Hijack()
}
