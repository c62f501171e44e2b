package sources

import (
	"context"
	"fmt"
	"slices"

	"github.com/stacklok/gateway-release-server/internal/models"
)

// StaticSource serves gateway configuration from an in-memory snapshot
type StaticSource struct {
	snapshot *Snapshot
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source serving the given snapshot.
// The snapshot must not be modified afterwards.
func NewStaticSource(snapshot *Snapshot) *StaticSource {
	if snapshot == nil {
		snapshot = &Snapshot{}
	}
	return &StaticSource{snapshot: snapshot}
}

// GetGateway implements Source
func (s *StaticSource) GetGateway(_ context.Context, gatewayID int64) (*models.Gateway, error) {
	i := slices.IndexFunc(s.snapshot.Gateways, func(g models.Gateway) bool { return g.ID == gatewayID })
	if i < 0 {
		return nil, fmt.Errorf("gateway %d: %w", gatewayID, ErrNotFound)
	}
	gw := s.snapshot.Gateways[i]
	return &gw, nil
}

// GetStage implements Source
func (s *StaticSource) GetStage(_ context.Context, gatewayID, stageID int64) (*models.Stage, error) {
	i := slices.IndexFunc(s.snapshot.Stages, func(st models.Stage) bool {
		return st.ID == stageID && st.GatewayID == gatewayID
	})
	if i < 0 {
		return nil, fmt.Errorf("stage %d of gateway %d: %w", stageID, gatewayID, ErrNotFound)
	}
	stage := s.snapshot.Stages[i]
	return &stage, nil
}

// GetResourceVersion implements Source
func (s *StaticSource) GetResourceVersion(
	_ context.Context,
	gatewayID, resourceVersionID int64,
) (*models.ResourceVersion, error) {
	i := slices.IndexFunc(s.snapshot.ResourceVersions, func(rv models.ResourceVersion) bool {
		return rv.ID == resourceVersionID && rv.GatewayID == gatewayID
	})
	if i < 0 {
		return nil, fmt.Errorf("resource version %d of gateway %d: %w", resourceVersionID, gatewayID, ErrNotFound)
	}
	rv := s.snapshot.ResourceVersions[i]
	rv.Resources = slices.Clone(rv.Resources)
	return &rv, nil
}

// GetMicroGateway implements Source
func (s *StaticSource) GetMicroGateway(_ context.Context, id string) (*models.MicroGateway, error) {
	i := slices.IndexFunc(s.snapshot.MicroGateways, func(mg models.MicroGateway) bool { return mg.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("micro gateway %s: %w", id, ErrNotFound)
	}
	mg := s.snapshot.MicroGateways[i]
	return &mg, nil
}

// ListBackends implements Source
func (s *StaticSource) ListBackends(_ context.Context, gatewayID int64) ([]models.Backend, error) {
	var result []models.Backend
	for _, b := range s.snapshot.Backends {
		if b.GatewayID == gatewayID {
			result = append(result, b)
		}
	}
	return result, nil
}

// ListBackendConfigs implements Source
func (s *StaticSource) ListBackendConfigs(ctx context.Context, gatewayID, stageID int64) ([]models.BackendConfig, error) {
	backends, err := s.ListBackends(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	var result []models.BackendConfig
	for _, cfg := range s.snapshot.BackendConfigs {
		if cfg.StageID != stageID {
			continue
		}
		if !slices.ContainsFunc(backends, func(b models.Backend) bool { return b.ID == cfg.BackendID }) {
			continue
		}
		result = append(result, cfg)
	}
	return result, nil
}

// ListPluginTypes implements Source
func (s *StaticSource) ListPluginTypes(_ context.Context) ([]models.PluginType, error) {
	return slices.Clone(s.snapshot.PluginTypes), nil
}

// ListPluginBindings implements Source
func (s *StaticSource) ListPluginBindings(_ context.Context, gatewayID int64) ([]models.PluginBinding, error) {
	var result []models.PluginBinding
	for _, b := range s.snapshot.PluginBindings {
		if b.GatewayID == gatewayID {
			result = append(result, b)
		}
	}
	return result, nil
}

// ListCertificates implements Source
func (s *StaticSource) ListCertificates(ctx context.Context, gatewayID, stageID int64) ([]models.Certificate, error) {
	if _, err := s.GetStage(ctx, gatewayID, stageID); err != nil {
		return nil, err
	}

	var result []models.Certificate
	for _, c := range s.snapshot.Certificates {
		if c.StageID == stageID {
			result = append(result, c)
		}
	}
	return result, nil
}

// GetJWTKey implements Source
func (s *StaticSource) GetJWTKey(_ context.Context, gatewayID int64) (*models.JWTKey, error) {
	i := slices.IndexFunc(s.snapshot.JWTKeys, func(k models.JWTKey) bool { return k.GatewayID == gatewayID })
	if i < 0 {
		return nil, fmt.Errorf("jwt key of gateway %d: %w", gatewayID, ErrNotFound)
	}
	key := s.snapshot.JWTKeys[i]
	return &key, nil
}

// GetAuthConfig implements Source
func (s *StaticSource) GetAuthConfig(_ context.Context, gatewayID int64) (*models.AuthConfig, error) {
	i := slices.IndexFunc(s.snapshot.AuthConfigs, func(a models.AuthConfig) bool { return a.GatewayID == gatewayID })
	if i < 0 {
		return nil, fmt.Errorf("auth config of gateway %d: %w", gatewayID, ErrNotFound)
	}
	cfg := s.snapshot.AuthConfigs[i]
	return &cfg, nil
}
