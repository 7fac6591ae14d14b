// Package plugintest provides contract tests every plugin.Plugin
// implementation should pass.
package plugintest

import (
	"context"
	"testing"

	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap/zaptest"
)

// TestPluginContract runs the lifecycle contract against plugins built by
// factory. deps may be nil, in which case only a logger is supplied.
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return capa.New() }, nil)
//	}
func TestPluginContract(t *testing.T, factory func() plugin.Plugin, deps func(t *testing.T, name string) plugin.Dependencies) {
	t.Helper()
	if deps == nil {
		deps = LoggerOnly
	}

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			t.Errorf("Info().APIVersion = %d, want %d..%d",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		a, b := p.Info(), p.Info()
		if a.Name != b.Name || a.Version != b.Version {
			t.Error("Info() must return consistent results")
		}
	})

	t.Run("Init_Start_Stop", func(t *testing.T) {
		p := factory()
		ctx := context.Background()
		if err := p.Init(ctx, deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	})

	t.Run("Stop_without_Start", func(t *testing.T) {
		p := factory()
		ctx := context.Background()
		if err := p.Init(ctx, deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Health_after_Init", func(t *testing.T) {
		p := factory()
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			t.Skip("plugin does not report health")
		}
		if err := p.Init(context.Background(), deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if status := hc.Health(context.Background()); status.Status == "" {
			t.Error("Health().Status must not be empty")
		}
	})
}

// LoggerOnly supplies a test logger and nothing else.
func LoggerOnly(t *testing.T, name string) plugin.Dependencies {
	return plugin.Dependencies{Logger: zaptest.NewLogger(t).Named(name)}
}
