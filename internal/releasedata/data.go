// Package releasedata gathers and validates everything needed to convert one
// release of a gateway stage into manifests.
package releasedata

import (
	"maps"
	"slices"

	"github.com/stacklok/gateway-release-server/internal/models"
)

// Backend is a backend together with its configuration for the released stage
type Backend struct {
	models.Backend
	Config models.BackendConfig
}

// ReleaseData is the validated input of the conversion step. It is read-only
// once built.
type ReleaseData struct {
	Gateway         models.Gateway
	Stage           models.Stage
	ResourceVersion models.ResourceVersion

	// Backends holds the backends that have a config for the stage, by ID
	Backends map[int64]Backend

	StagePlugins []models.PluginBinding
	// ResourcePlugins holds resource scoped bindings by resource ID
	ResourcePlugins map[int64][]models.PluginBinding

	Certificates []models.Certificate
	JWTKey       models.JWTKey
	AuthConfig   models.AuthConfig
}

// BackendIDs returns the backend IDs in ascending order
func (d *ReleaseData) BackendIDs() []int64 {
	return slices.Sorted(maps.Keys(d.Backends))
}

// Backend returns the backend with the given ID
func (d *ReleaseData) Backend(id int64) (Backend, bool) {
	b, ok := d.Backends[id]
	return b, ok
}
