package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	releaseapp "github.com/stacklok/gateway-release-server/internal/app"
	"github.com/stacklok/gateway-release-server/internal/app/storage"
	"github.com/stacklok/gateway-release-server/internal/distributor"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the bundle of one release for one instance",
		Long: `Render builds and converts a release exactly like publish does and prints the
bundle values document of one target instance. Nothing is recorded or distributed.`,
		RunE: runRender,
	}
	addConfigFlag(cmd, false)
	cmd.Flags().Int64("gateway-id", 0, "Gateway ID (required)")
	cmd.Flags().Int64("stage-id", 0, "Stage ID (required)")
	cmd.Flags().Int64("resource-version-id", 0, "Resource version to render (required)")
	cmd.Flags().String("target", "", "Target gateway instance ID (required)")
	cmd.Flags().StringP("output", "o", "", "Write the bundle to this file instead of stdout")
	for _, name := range []string{"gateway-id", "stage-id", "resource-version-id", "target"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var rel models.Release
	var err error
	if rel.GatewayID, err = cmd.Flags().GetInt64("gateway-id"); err != nil {
		return fmt.Errorf("failed to get gateway-id flag: %w", err)
	}
	if rel.StageID, err = cmd.Flags().GetInt64("stage-id"); err != nil {
		return fmt.Errorf("failed to get stage-id flag: %w", err)
	}
	if rel.ResourceVersionID, err = cmd.Flags().GetInt64("resource-version-id"); err != nil {
		return fmt.Errorf("failed to get resource-version-id flag: %w", err)
	}
	targetID, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// rendering never records events, so the configured store is left alone
	comps, err := releaseapp.BuildComponents(ctx,
		releaseapp.WithConfig(cfg),
		releaseapp.WithStorageFactory(storage.NewMemoryFactory()),
	)
	if err != nil {
		return fmt.Errorf("failed to build release components: %w", err)
	}
	defer func() { _ = comps.Close(context.Background()) }()

	out, err := renderBundle(ctx, comps, rel, targetID)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(output, out, 0600); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

// renderBundle builds, converts and renders rel for one instance
func renderBundle(
	ctx context.Context,
	comps *releaseapp.AppComponents,
	rel models.Release,
	targetID string,
) ([]byte, error) {
	target, err := comps.Source.GetMicroGateway(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target %s: %w", targetID, err)
	}
	if target.GatewayID != rel.GatewayID {
		return nil, &releasedata.InputError{Field: "target", Reason: "belongs to another gateway"}
	}

	data, err := releasedata.NewBuilder(comps.Source).Build(ctx, rel)
	if err != nil {
		return nil, err
	}
	objs, err := comps.Converter.Convert(ctx, data, target)
	if err != nil {
		return nil, err
	}

	return distributor.Render(&distributor.Release{
		Gateway:           data.Gateway.Name,
		Stage:             data.Stage.Name,
		ResourceVersionID: data.ResourceVersion.ID,
		Manifests:         objs,
	}, target)
}
