// Package server provides the HTTP server that exposes the capa modules.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"

	"github.com/HerbHall/capa/internal/version"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// PluginSource provides the server with module metadata, routes and health.
// Defined here (consumer-side) rather than importing the concrete registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	All() []plugin.Plugin
	Health(ctx context.Context) map[string]plugin.HealthStatus
}

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// Server is the capa HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
	gate       *detectionGate
}

// New creates a Server with middleware and routes. Module routes are mounted
// under /api/v1/{module}; routes flagged as detections pass through the
// detection gate. When cfg.DevMode is set, Swagger UI is served at /swagger/.
func New(cfg Config, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker) *Server {
	mux := http.NewServeMux()

	s := &Server{
		plugins: plugins,
		logger:  logger,
		mux:     mux,
		ready:   ready,
		gate:    newDetectionGate(cfg.Detection, logger),
	}

	s.registerRoutes()
	s.mountPluginRoutes()

	if cfg.DevMode {
		mux.Handle("GET /swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		logger.Info("swagger UI enabled (dev_mode)", zap.String("path", "/swagger/"))
	}

	// Middleware chain: outermost listed first.
	handler := Chain(mux,
		RecoveryMiddleware(logger),
		RequestContextMiddleware,
		AccessLogMiddleware(logger),
		ResponseHeadersMiddleware,
	)

	// No read or write deadline: detection streams and the event feed are
	// long-lived WebSocket connections. Module handlers bound their own work.
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes sets up all core routes.
func (s *Server) registerRoutes() {
	// Unversioned operational endpoints.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Versioned API endpoints.
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	s.mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), r.URL.Path)
	})
}

// mountPluginRoutes registers all module routes under /api/v1/{module}/.
func (s *Server) mountPluginRoutes() {
	allRoutes := s.plugins.AllRoutes()
	names := make([]string, 0, len(allRoutes))
	for name := range allRoutes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, pluginName := range names {
		for _, route := range allRoutes[pluginName] {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			handler := route.Handler
			if route.Detection {
				handler = s.gate.wrap(handler)
			}
			s.mux.HandleFunc(pattern, handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
				zap.Bool("detection", route.Detection),
			)
		}
	}
}

// Start begins serving HTTP requests and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is a liveness check: returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz checks readiness -- returns 200 if the server can serve traffic.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string                         `json:"status" example:"ok"`
	Service string                         `json:"service" example:"capa"`
	Version map[string]string              `json:"version"`
	Plugins map[string]plugin.HealthStatus `json:"plugins,omitempty"`
}

// PluginResponse describes a registered module.
type PluginResponse struct {
	Name         string   `json:"name" example:"capa"`
	Version      string   `json:"version" example:"0.1.0"`
	Description  string   `json:"description" example:"Collective and point anomaly detection"`
	Dependencies []string `json:"dependencies,omitempty"`
	Required     bool     `json:"required"`
}

// handleHealth returns service health with version and module reports.
// Status is "degraded" when any module reports something other than healthy.
//
//	@Summary		Health check
//	@Description	Returns service health status with version information and per-module health.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plugins := s.plugins.Health(r.Context())
	status := "ok"
	for _, h := range plugins {
		if h.Status != "healthy" {
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  status,
		Service: "capa",
		Version: version.Map(),
		Plugins: plugins,
	})
}

// handlePlugins returns the list of active modules.
//
//	@Summary		List plugins
//	@Description	Returns all active modules with their metadata.
//	@Tags			system
//	@Produce		json
//	@Success		200	{array}	PluginResponse
//	@Router			/plugins [get]
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.plugins.All()
	info := make([]PluginResponse, 0, len(plugins))
	for _, p := range plugins {
		pi := p.Info()
		info = append(info, PluginResponse{
			Name:         pi.Name,
			Version:      pi.Version,
			Description:  pi.Description,
			Dependencies: pi.Dependencies,
			Required:     pi.Required,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
