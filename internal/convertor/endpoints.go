package convertor

import (
	"context"
	"strconv"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

type endpointsConvertor struct{}

func (*endpointsConvertor) Kind() manifest.Kind { return manifest.KindEndpoints }

// Convert emits one endpoints manifest per service discovery backend
func (c *endpointsConvertor) Convert(
	_ context.Context,
	data *releasedata.ReleaseData,
	_ *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name

	var out []*manifest.Object
	for _, id := range data.BackendIDs() {
		cfg := data.Backends[id].Config
		if cfg.Type != models.BackendTypeDiscovery || cfg.Discovery == nil {
			continue
		}

		spec := &manifest.EndpointsSpec{
			DiscoveryType: cfg.Discovery.Type,
			Address:       cfg.Discovery.Address,
			ServiceName:   cfg.Discovery.ServiceName,
			Namespace:     cfg.Discovery.Namespace,
		}
		labels := naming.Labels(gw, stage, map[string]string{"backend-id": strconv.FormatInt(id, 10)})
		obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, "endpoints-"+serviceLeaf(id)), labels, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
