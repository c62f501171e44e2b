package releasedata

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"

	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/sources"
)

// Builder assembles ReleaseData from a configuration source
type Builder struct {
	source sources.Source
}

// NewBuilder returns a builder reading from source
func NewBuilder(source sources.Source) *Builder {
	return &Builder{source: source}
}

// Build loads and validates the data of one release. Missing or malformed
// configuration yields an *InputError; source failures are returned wrapped
// and may be retried.
func (b *Builder) Build(ctx context.Context, rel models.Release) (*ReleaseData, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues(
		"gatewayID", rel.GatewayID,
		"stageID", rel.StageID,
		"resourceVersionID", rel.ResourceVersionID,
	)

	gateway, err := b.source.GetGateway(ctx, rel.GatewayID)
	if err != nil {
		return nil, lookupErr("gatewayID", err)
	}
	stage, err := b.source.GetStage(ctx, rel.GatewayID, rel.StageID)
	if err != nil {
		return nil, lookupErr("stageID", err)
	}
	rv, err := b.source.GetResourceVersion(ctx, rel.GatewayID, rel.ResourceVersionID)
	if err != nil {
		return nil, lookupErr("resourceVersionID", err)
	}
	jwtKey, err := b.source.GetJWTKey(ctx, rel.GatewayID)
	if err != nil {
		return nil, lookupErr("jwtKey", err)
	}

	auth := models.AuthConfig{GatewayID: rel.GatewayID}
	switch a, err := b.source.GetAuthConfig(ctx, rel.GatewayID); {
	case err == nil:
		auth = *a
	case !errors.Is(err, sources.ErrNotFound):
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}

	backends, err := b.loadBackends(ctx, rel)
	if err != nil {
		return nil, err
	}
	bindings, err := b.source.ListPluginBindings(ctx, rel.GatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin bindings: %w", err)
	}
	pluginTypes, err := b.source.ListPluginTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin types: %w", err)
	}
	certs, err := b.source.ListCertificates(ctx, rel.GatewayID, rel.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	data := &ReleaseData{
		Gateway:         *gateway,
		Stage:           *stage,
		ResourceVersion: *rv,
		Backends:        backends,
		ResourcePlugins: make(map[int64][]models.PluginBinding),
		Certificates:    certs,
		JWTKey:          *jwtKey,
		AuthConfig:      auth,
	}
	data.StagePlugins, data.ResourcePlugins = splitBindings(bindings, stage.ID, rv.Resources)

	v := newValidator(pluginTypes)
	if err := v.validate(data); err != nil {
		logger.V(1).Info("Release data rejected", "error", err.Error())
		return nil, err
	}

	logger.V(1).Info("Built release data",
		"resources", len(rv.Resources),
		"backends", len(backends),
		"certificates", len(certs),
	)
	return data, nil
}

func (b *Builder) loadBackends(ctx context.Context, rel models.Release) (map[int64]Backend, error) {
	backends, err := b.source.ListBackends(ctx, rel.GatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backends: %w", err)
	}
	configs, err := b.source.ListBackendConfigs(ctx, rel.GatewayID, rel.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backend configs: %w", err)
	}

	out := make(map[int64]Backend, len(configs))
	for _, cfg := range configs {
		i := slices.IndexFunc(backends, func(b models.Backend) bool { return b.ID == cfg.BackendID })
		if i < 0 {
			continue
		}
		out[cfg.BackendID] = Backend{Backend: backends[i], Config: cfg}
	}
	return out, nil
}

// splitBindings keeps the bindings of the released stage and resources, ordered by ID
func splitBindings(
	bindings []models.PluginBinding,
	stageID int64,
	resources []models.Resource,
) ([]models.PluginBinding, map[int64][]models.PluginBinding) {
	bindings = slices.Clone(bindings)
	slices.SortFunc(bindings, func(a, b models.PluginBinding) int { return cmp.Compare(a.ID, b.ID) })

	var stagePlugins []models.PluginBinding
	resourcePlugins := make(map[int64][]models.PluginBinding)
	for _, pb := range bindings {
		switch pb.ScopeType {
		case models.PluginScopeStage:
			if pb.ScopeID == stageID {
				stagePlugins = append(stagePlugins, pb)
			}
		case models.PluginScopeResource:
			if slices.ContainsFunc(resources, func(r models.Resource) bool { return r.ID == pb.ScopeID }) {
				resourcePlugins[pb.ScopeID] = append(resourcePlugins[pb.ScopeID], pb)
			}
		}
	}
	return stagePlugins, resourcePlugins
}

func lookupErr(field string, err error) error {
	if errors.Is(err, sources.ErrNotFound) {
		return inputErr(field, "not found", err)
	}
	return fmt.Errorf("failed to load %s: %w", field, err)
}
