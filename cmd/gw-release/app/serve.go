package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	releaseapp "github.com/stacklok/gateway-release-server/internal/app"
	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the release server",
		Long: `Start the release server: the task worker pool, the event retention loop and
the HTTP status API.

The server requires a configuration file (--config) that specifies:
- Controller endpoints and stage templates
- The configuration source snapshot
- The distribution strategy and the event store

See examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().Duration("graceful-timeout", defaultGracefulTimeout, "Time given to running pipelines on shutdown")
	addConfigFlag(cmd, false)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}
	gracefulTimeout, err := cmd.Flags().GetDuration("graceful-timeout")
	if err != nil {
		return fmt.Errorf("failed to get graceful-timeout flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	app, err := releaseapp.NewReleaseApp(ctx,
		releaseapp.WithConfig(cfg),
		releaseapp.WithAddress(address),
		releaseapp.WithMeterProvider(tel.MeterProvider()),
		releaseapp.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to build release server: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := app.Stop(gracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop release server", "error", stopErr)
		}
		return err
	case <-sigCtx.Done():
	}

	return app.Stop(gracefulTimeout)
}

// loadConfig loads the file named by the --config flag
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"event_store", cfg.Events.GetStore(),
		"distribution", cfg.Distribution.GetStrategy(),
	)
	return cfg, nil
}
