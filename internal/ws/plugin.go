// Package ws streams detections over WebSocket: a single online run whose
// steps are pushed as they are solved, and a live feed of completed runs.
package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/capa/internal/capa"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap"
)

const pluginName = "ws"

var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// Detector runs one detection, reporting online steps to onStep.
type Detector interface {
	Detect(ctx context.Context, req anomaly.DetectRequest, onStep func(anomaly.Step) error) (*anomaly.DetectResponse, error)
}

// Config holds WebSocket settings.
type Config struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	OriginPatterns []string      `mapstructure:"origin_patterns"` // Empty allows same-origin only
}

// DefaultConfig returns the WebSocket defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 8 << 20,
	}
}

// Module implements the streaming plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	hub      *Hub
	detector Detector
}

// New creates a module. A nil detector is resolved from the capa module
// during Init.
func New(detector Detector) *Module {
	return &Module{detector: detector}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         pluginName,
		Version:      "0.1.0",
		Description:  "WebSocket streaming of detection steps and results",
		Dependencies: []string{"capa"},
		APIVersion:   plugin.APIVersionCurrent,
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
			return fmt.Errorf("unmarshal ws config: %w", err)
		}
	}
	m.hub = NewHub(m.logger)

	if m.detector == nil && deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("capa"); ok {
			if cm, ok := p.(*capa.Module); ok && cm.Detector() != nil {
				m.detector = cm.Detector()
			}
		}
	}

	m.logger.Info("ws module initialized",
		zap.Bool("streaming", m.detector != nil),
		zap.Int("send_buffer", m.cfg.SendBuffer),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	return nil
}

// Stop disconnects every feed client.
func (m *Module) Stop(_ context.Context) error {
	if m.hub != nil {
		m.hub.CloseAll()
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.hub == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "not initialized"}
	}
	status := plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"feed_clients": fmt.Sprint(m.hub.ClientCount())},
	}
	if m.detector == nil {
		status.Status = "degraded"
		status.Message = "no detector available; streaming detection disabled"
	}
	return status
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: capa.TopicDetectionCompleted, Handler: m.handleDetectionCompleted},
	}
}

func (m *Module) handleDetectionCompleted(_ context.Context, event plugin.Event) {
	summary, ok := event.Payload.(anomaly.DetectionSummary)
	if !ok {
		m.logger.Debug("ignored detection event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	m.hub.Broadcast(Message{
		Type:      MessageDetectionCompleted,
		RunID:     summary.RunID,
		Timestamp: event.Timestamp,
		Data:      FeedData(summary),
	})
}
