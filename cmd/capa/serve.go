package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/HerbHall/capa/api/swagger"
	"github.com/HerbHall/capa/internal/capa"
	"github.com/HerbHall/capa/internal/config"
	"github.com/HerbHall/capa/internal/event"
	"github.com/HerbHall/capa/internal/registry"
	"github.com/HerbHall/capa/internal/server"
	"github.com/HerbHall/capa/internal/version"
	"github.com/HerbHall/capa/internal/ws"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket detection server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srvCfg, err := server.UnmarshalConfig(viperCfg)
	if err != nil {
		return err
	}
	cfg := config.New(viperCfg)

	logger.Info("capa server starting", zap.String("version", version.Short()))
	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Compile-time composition.
	capaMod := capa.New()
	for _, m := range []plugin.Plugin{capaMod, ws.New(nil)} {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation failed: %w", err)
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.ForPlugin(name),
			Logger:  logger.Named(name),
			Bus:     bus,
			Plugins: reg,
			Metrics: prometheus.DefaultRegisterer,
		}
	}); err != nil {
		return fmt.Errorf("failed to initialize plugins: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start plugins: %w", err)
	}

	ready := server.ReadinessChecker(func(context.Context) error {
		if capaMod.Detector() == nil {
			return errors.New("detector not initialized")
		}
		return nil
	})
	srv := server.New(srvCfg, reg, logger, ready)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("capa server ready", zap.String("addr", srvCfg.Addr()))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), srvCfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := reg.StopAll(shutdownCtx); err != nil {
		logger.Error("plugin shutdown error", zap.Error(err))
	}
	bus.Wait()

	logger.Info("capa server stopped")
	return serveErr
}
