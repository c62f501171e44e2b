package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/gateway-release-server/internal/app/storage"
	"github.com/stacklok/gateway-release-server/internal/tasks"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired publish events once",
		Long: `Cleanup runs a single retention pass against the configured event store,
deleting the publish events older than retention.window.`,
		RunE: runCleanup,
	}
	addConfigFlag(cmd, false)
	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	store, err := factory.CreateEventStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create event store: %w", err)
	}

	loop := tasks.NewRetentionLoop(store, cfg.Retention.GetWindow(), cfg.Retention.GetInterval())
	deleted, err := loop.RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.Info("Cleanup complete", "deleted", deleted, "window", cfg.Retention.GetWindow().String())
	return nil
}
