package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	releaseapp "github.com/stacklok/gateway-release-server/internal/app"
	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/status"
	"github.com/stacklok/gateway-release-server/internal/tasks"
)

const defaultWaitTimeout = 5 * time.Minute

const oneShotRegistryNote = `With the "registry" distribution strategy the manifests go to an in-process
registry that is discarded when the command exits, so only the event log and the
report persist. Use the "bundle" strategy to keep the output, or run "serve".`

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a resource version to the instances of a stage",
		Long: `Publish builds the release data of a resource version, converts it for every
target instance and distributes the manifests. The command waits for the pipeline
and prints the status report as JSON.

` + oneShotRegistryNote + `

Example:
  gw-release publish --config config.yaml --gateway-id 1 --stage-id 10 \
    --resource-version-id 100 --target mgw-1 --target mgw-2`,
		RunE: runPublish,
	}
	addReleaseFlags(cmd)
	cmd.Flags().Int64("resource-version-id", 0, "Resource version to publish (required)")
	if err := cmd.MarkFlagRequired("resource-version-id"); err != nil {
		panic(err)
	}
	return cmd
}

func newRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Withdraw a stage from its instances",
		Long: `Revoke removes the manifests of a stage from every target instance. The command
waits for the pipeline and prints the status report as JSON.

` + oneShotRegistryNote,
		RunE: runRevoke,
	}
	addReleaseFlags(cmd)
	return cmd
}

func addReleaseFlags(cmd *cobra.Command) {
	addConfigFlag(cmd, false)
	cmd.Flags().Int64("gateway-id", 0, "Gateway ID (required)")
	cmd.Flags().Int64("stage-id", 0, "Stage ID (required)")
	cmd.Flags().StringSlice("target", nil, "Target gateway instance ID (repeatable, required)")
	cmd.Flags().Duration("wait-timeout", defaultWaitTimeout, "How long to wait for the pipeline")
	for _, name := range []string{"gateway-id", "stage-id", "target"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

// releaseFlags are the values shared by publish and revoke
type releaseFlags struct {
	gatewayID   int64
	stageID     int64
	targets     []string
	waitTimeout time.Duration
}

func getReleaseFlags(cmd *cobra.Command) (*releaseFlags, error) {
	var (
		f   releaseFlags
		err error
	)
	if f.gatewayID, err = cmd.Flags().GetInt64("gateway-id"); err != nil {
		return nil, fmt.Errorf("failed to get gateway-id flag: %w", err)
	}
	if f.stageID, err = cmd.Flags().GetInt64("stage-id"); err != nil {
		return nil, fmt.Errorf("failed to get stage-id flag: %w", err)
	}
	if f.targets, err = cmd.Flags().GetStringSlice("target"); err != nil {
		return nil, fmt.Errorf("failed to get target flag: %w", err)
	}
	if f.waitTimeout, err = cmd.Flags().GetDuration("wait-timeout"); err != nil {
		return nil, fmt.Errorf("failed to get wait-timeout flag: %w", err)
	}
	return &f, nil
}

func runPublish(cmd *cobra.Command, _ []string) error {
	flags, err := getReleaseFlags(cmd)
	if err != nil {
		return err
	}
	rvID, err := cmd.Flags().GetInt64("resource-version-id")
	if err != nil {
		return fmt.Errorf("failed to get resource-version-id flag: %w", err)
	}

	return runRelease(cmd, flags, func(ctx context.Context, svc *tasks.Service) (*events.History, error) {
		return svc.Publish(ctx, tasks.PublishRequest{
			GatewayID:         flags.gatewayID,
			StageID:           flags.stageID,
			ResourceVersionID: rvID,
			Targets:           flags.targets,
		})
	})
}

func runRevoke(cmd *cobra.Command, _ []string) error {
	flags, err := getReleaseFlags(cmd)
	if err != nil {
		return err
	}

	return runRelease(cmd, flags, func(ctx context.Context, svc *tasks.Service) (*events.History, error) {
		return svc.Revoke(ctx, tasks.RevokeRequest{
			GatewayID: flags.gatewayID,
			StageID:   flags.stageID,
			Targets:   flags.targets,
		})
	})
}

// runRelease starts one pipeline, waits for the pool and prints the report
func runRelease(
	cmd *cobra.Command,
	flags *releaseFlags,
	start func(context.Context, *tasks.Service) (*events.History, error),
) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Distribution.GetStrategy() == config.StrategyRegistry {
		slog.Warn("Registry strategy in one-shot mode: distributed manifests are discarded on exit")
	}

	comps, err := releaseapp.BuildComponents(ctx, releaseapp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build release components: %w", err)
	}

	defer func() {
		if err := comps.Close(context.Background()); err != nil {
			slog.Error("Failed to close release components", "error", err)
		}
	}()

	h, startErr := start(ctx, comps.Releases)
	if h == nil {
		return startErr
	}

	waitCtx, cancel := context.WithTimeout(ctx, flags.waitTimeout)
	defer cancel()
	if err := comps.Pool.Shutdown(waitCtx); err != nil {
		slog.Error("Pipeline did not finish in time", "history_id", h.ID, "error", err)
	}

	report, err := comps.Status.HistoryStatus(ctx, h.ID)
	if err != nil {
		return fmt.Errorf("failed to evaluate history %d: %w", h.ID, err)
	}
	if err := printReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if startErr != nil {
		return startErr
	}
	if report.Status == events.StatusFailure {
		return fmt.Errorf("%s of history %d failed", report.Kind, report.HistoryID)
	}
	return nil
}

func printReport(w io.Writer, report *status.Report) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format status report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
