// Package capa is the detection service module: it resolves requests
// against configured defaults, runs the engine, and publishes completed runs
// on the event bus.
package capa

import (
	"context"
	"fmt"
	"strconv"

	"github.com/HerbHall/capa/internal/detect"
	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap"
)

const pluginName = "capa"

var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Module implements the detection service plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	detector *Detector
}

// New creates an uninitialized module.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        pluginName,
		Version:     "0.1.0",
		Description: "Robust collective and point anomaly detection",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal capa config: %w", err)
		}
	}

	var metrics *detect.Metrics
	if deps.Metrics != nil {
		metrics = detect.NewMetrics(deps.Metrics)
	}
	m.detector = NewDetector(m.cfg, m.logger, metrics, deps.Bus)

	m.logger.Info("capa module initialized",
		zap.Int("min_length", m.cfg.MinLength),
		zap.Int("max_length", m.cfg.MaxLength),
		zap.Float64("threshold", m.cfg.Threshold),
		zap.String("transform", m.cfg.Transform),
		zap.Int("max_series_length", m.cfg.MaxSeriesLength),
		zap.Duration("timeout", m.cfg.Timeout),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("capa module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("capa module stopped")
	return nil
}

// Detector returns the module's detector for other modules and the CLI.
func (m *Module) Detector() *Detector {
	return m.detector
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.detector == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "not initialized"}
	}
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"runs":     strconv.FormatInt(m.detector.Runs(), 10),
			"failures": strconv.FormatInt(m.detector.Failures(), 10),
		},
	}
}
