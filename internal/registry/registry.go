// Package registry manages module lifecycle: registration, dependency
// ordering, initialization, startup, and shutdown.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap"
)

// Registry owns the registered modules.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string // dependency order after Validate
	disabled map[string]bool
	unsubs   []func()
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a module. Call before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}

	r.plugins[info.Name] = p
	r.infos[info.Name] = info
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks API versions and dependencies and computes the start
// order. Optional modules with unmet requirements are disabled, along with
// everything that depends on them; a required module with unmet
// requirements is an error.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.names() {
		info := r.infos[name]
		if err := checkAPIVersion(info); err != nil {
			if err := r.disable(name, err); err != nil {
				return err
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, name := range r.names() {
			if r.disabled[name] {
				continue
			}
			for _, dep := range r.infos[name].Dependencies {
				var reason error
				switch {
				case r.plugins[dep] == nil:
					reason = fmt.Errorf("plugin %q depends on %q which is not registered", name, dep)
				case r.disabled[dep]:
					reason = fmt.Errorf("plugin %q depends on %q which is disabled", name, dep)
				default:
					continue
				}
				if err := r.disable(name, reason); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// disable marks an optional module disabled, or returns reason when the
// module is required. Callers hold mu.
func (r *Registry) disable(name string, reason error) error {
	if r.infos[name].Required {
		return reason
	}
	r.logger.Warn("disabling plugin", zap.String("name", name), zap.Error(reason))
	r.disabled[name] = true
	return nil
}

// InitAll initializes active modules in dependency order, validates their
// configuration, and subscribes their event handlers.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		p := r.plugins[name]
		deps := depsFn(name)

		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := p.Init(ctx, deps); err != nil {
			if err := r.disable(name, fmt.Errorf("plugin %q failed to initialize: %w", name, err)); err != nil {
				return err
			}
			continue
		}
		if v, ok := p.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if err := r.disable(name, fmt.Errorf("plugin %q config validation failed: %w", name, err)); err != nil {
					return err
				}
				continue
			}
		}
		if es, ok := p.(plugin.EventSubscriber); ok && deps.Bus != nil {
			for _, sub := range es.Subscriptions() {
				r.unsubs = append(r.unsubs, deps.Bus.Subscribe(sub.Topic, sub.Handler))
			}
		}
	}
	return nil
}

// StartAll starts initialized modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			if err := r.disable(name, fmt.Errorf("plugin %q failed to start: %w", name, err)); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll stops active modules in reverse dependency order and drops their
// bus subscriptions. Every module is asked to stop even if an earlier one
// fails; the failures are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil

	var errs []error
	for _, name := range slices.Backward(r.order) {
		if r.disabled[name] {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns an active module by name.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok || r.disabled[name] {
		return nil, false
	}
	return p, true
}

// All returns active modules in dependency order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			out = append(out, r.plugins[name])
		}
	}
	return out
}

// AllRoutes returns the routes of active HTTPProvider modules keyed by name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, p := range r.All() {
		if hp, ok := p.(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[p.Info().Name] = pr
			}
		}
	}
	return routes
}

// Health collects reports from active HealthChecker modules.
func (r *Registry) Health(ctx context.Context) map[string]plugin.HealthStatus {
	out := make(map[string]plugin.HealthStatus)
	for _, p := range r.All() {
		if hc, ok := p.(plugin.HealthChecker); ok {
			out[p.Info().Name] = hc.Health(ctx)
		}
	}
	return out
}

// IsDisabled reports whether a module was disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// names returns registered names in sorted order so resolution is
// deterministic. Callers hold mu.
func (r *Registry) names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func checkAPIVersion(info plugin.PluginInfo) error {
	if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets plugin API v%d, server supports v%d..v%d",
			info.Name, info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	return nil
}

// topologicalSort orders active modules with Kahn's algorithm, breaking
// ties by name. Callers hold mu.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.names() {
		if r.disabled[name] {
			continue
		}
		inDegree[name] += 0
		for _, dep := range r.infos[name].Dependencies {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range r.names() {
		if d, ok := inDegree[name]; ok && d == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(inDegree))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(inDegree) {
		var cycled []string
		for _, name := range r.names() {
			if inDegree[name] > 0 {
				cycled = append(cycled, name)
			}
		}
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}
