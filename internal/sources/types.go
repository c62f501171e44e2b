package sources

import (
	"context"
	"errors"

	"github.com/stacklok/gateway-release-server/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Source exposes the gateway configuration needed to build a release
type Source interface {
	// GetGateway returns the gateway with the given ID
	GetGateway(ctx context.Context, gatewayID int64) (*models.Gateway, error)
	// GetStage returns a stage of the gateway
	GetStage(ctx context.Context, gatewayID, stageID int64) (*models.Stage, error)
	// GetResourceVersion returns a resource version of the gateway
	GetResourceVersion(ctx context.Context, gatewayID, resourceVersionID int64) (*models.ResourceVersion, error)
	// GetMicroGateway returns the gateway instance with the given ID
	GetMicroGateway(ctx context.Context, id string) (*models.MicroGateway, error)
	// ListBackends lists the backends of the gateway
	ListBackends(ctx context.Context, gatewayID int64) ([]models.Backend, error)
	// ListBackendConfigs lists the configs of the gateway backends for one stage
	ListBackendConfigs(ctx context.Context, gatewayID, stageID int64) ([]models.BackendConfig, error)
	// ListPluginTypes lists every known plugin type
	ListPluginTypes(ctx context.Context) ([]models.PluginType, error)
	// ListPluginBindings lists the plugin bindings of the gateway, for all scopes
	ListPluginBindings(ctx context.Context, gatewayID int64) ([]models.PluginBinding, error)
	// ListCertificates lists the certificates served by a stage
	ListCertificates(ctx context.Context, gatewayID, stageID int64) ([]models.Certificate, error)
	// GetJWTKey returns the signing key of the gateway
	GetJWTKey(ctx context.Context, gatewayID int64) (*models.JWTKey, error)
	// GetAuthConfig returns the default auth policy of the gateway
	GetAuthConfig(ctx context.Context, gatewayID int64) (*models.AuthConfig, error)
}

// Snapshot is a complete, self-contained dump of gateway configuration
type Snapshot struct {
	Gateways         []models.Gateway         `json:"gateways"`
	Stages           []models.Stage           `json:"stages"`
	ResourceVersions []models.ResourceVersion `json:"resourceVersions"`
	MicroGateways    []models.MicroGateway    `json:"microGateways"`
	Backends         []models.Backend         `json:"backends"`
	BackendConfigs   []models.BackendConfig   `json:"backendConfigs"`
	PluginTypes      []models.PluginType      `json:"pluginTypes,omitempty"`
	PluginBindings   []models.PluginBinding   `json:"pluginBindings,omitempty"`
	Certificates     []models.Certificate     `json:"certificates,omitempty"`
	JWTKeys          []models.JWTKey          `json:"jwtKeys,omitempty"`
	AuthConfigs      []models.AuthConfig      `json:"authConfigs,omitempty"`
}
