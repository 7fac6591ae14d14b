// Package plugin defines the module contract of the capa server. The
// detection service and the streaming endpoints are both modules; the
// registry wires them together in dependency order.
package plugin

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// API version range accepted by the registry.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// Plugin is implemented by every server module.
type Plugin interface {
	Info() PluginInfo
	Init(ctx context.Context, deps Dependencies) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PluginInfo describes a module and the modules it needs.
type PluginInfo struct {
	Name         string   // Unique identifier and URL prefix: "capa", "ws"
	Version      string   // Semantic version string
	Description  string   // Human-readable summary
	Dependencies []string // Modules that must initialize first
	Required     bool     // Server refuses to start without it
	APIVersion   int
}

// Dependencies are the shared services handed to a module during Init.
type Dependencies struct {
	Config  Config      // Scoped to the module's config section
	Logger  *zap.Logger // Named after the module
	Bus     EventBus
	Plugins PluginResolver

	// Metrics is where the module registers its collectors. Nil means the
	// module should not register any.
	Metrics prometheus.Registerer
}

// Route is an HTTP route mounted under /api/v1/{module}.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc

	// Detection marks routes that run the solver. The server admits them
	// through its detection gate: a per-client rate and a cap on concurrent runs.
	Detection bool
}

type requestIDKey struct{}

// WithRequestID returns ctx carrying the ID the server assigned to the
// HTTP request. Modules add it to their run logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// HTTPProvider is implemented by modules that expose HTTP routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthChecker is implemented by modules that report their own health.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Validator is implemented by modules that check their configuration after Init.
type Validator interface {
	ValidateConfig() error
}

// EventSubscriber is implemented by modules whose handlers the registry
// subscribes to the bus after Init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}

// HealthStatus is a module's health report.
type HealthStatus struct {
	Status  string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Config abstracts configuration access.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the bus.
type Subscriber interface {
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
}

// EventBus is publish/subscribe between modules.
type EventBus interface {
	Publisher
	Subscriber
	PublishAsync(ctx context.Context, event Event)
	SubscribeAll(handler EventHandler) (unsubscribe func())
}

// Event is a message on the bus. The payload type depends on the topic.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// EventHandler processes events from the bus.
type EventHandler func(ctx context.Context, event Event)

// Subscription binds a handler to a topic.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// PluginResolver locates other active modules by name.
type PluginResolver interface {
	Resolve(name string) (Plugin, bool)
}
