package convertor

import (
	"context"
	"slices"
	"strings"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

type gatewayConfigConvertor struct {
	endpoints []string
	basePath  string
}

func (*gatewayConfigConvertor) Kind() manifest.Kind { return manifest.KindGatewayConfig }

func (c *gatewayConfigConvertor) Convert(
	_ context.Context,
	data *releasedata.ReleaseData,
	target *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name
	spec := &manifest.GatewayConfigSpec{
		InstanceID: target.ID,
		Controller: manifest.ControllerSpec{
			Endpoints: slices.Clone(c.endpoints),
			BasePath: strings.NewReplacer(
				"{gateway}", gw,
				"{stage}", stage,
				"{instance_id}", target.ID,
			).Replace(c.basePath),
			JWTAuth: manifest.JWTAuthSpec{Secret: target.Secret},
		},
	}

	obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, "config"), naming.Labels(gw, stage, nil), spec)
	if err != nil {
		return nil, err
	}
	return []*manifest.Object{obj}, nil
}
