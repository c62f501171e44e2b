package convertor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

const (
	defaultLoadBalance = "roundrobin"
	defaultScheme      = "http"
)

// serviceLeaf names the service manifest of a backend
func serviceLeaf(backendID int64) string {
	return "backend-" + strconv.FormatInt(backendID, 10)
}

// backendTLSLeaf names the client certificate manifest of a backend
func backendTLSLeaf(backendID int64) string {
	return serviceLeaf(backendID) + "-tls"
}

type serviceConvertor struct{}

func (*serviceConvertor) Kind() manifest.Kind { return manifest.KindService }

func (c *serviceConvertor) Convert(
	_ context.Context,
	data *releasedata.ReleaseData,
	_ *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name

	out := make([]*manifest.Object, 0, len(data.Backends))
	for _, id := range data.BackendIDs() {
		b := data.Backends[id]

		upstream, err := upstreamSpec(b.Config)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", b.Name, err)
		}
		if b.Config.ClientCertificate != nil {
			upstream.TLSName = naming.Name(gw, stage, backendTLSLeaf(id))
		}

		spec := &manifest.ServiceSpec{
			Name:        b.Name,
			Description: b.Description,
			Upstream:    upstream,
		}
		labels := naming.Labels(gw, stage, map[string]string{"backend-id": strconv.FormatInt(id, 10)})
		obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, serviceLeaf(id)), labels, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func upstreamSpec(cfg models.BackendConfig) (manifest.UpstreamSpec, error) {
	up := manifest.UpstreamSpec{
		Type:    cfg.LoadBalance,
		Scheme:  defaultScheme,
		Timeout: timeoutSpec(cfg.Timeout),
	}
	if up.Type == "" {
		up.Type = defaultLoadBalance
	}

	switch cfg.Type {
	case models.BackendTypeDiscovery:
		up.DiscoveryType = cfg.Discovery.Type
		up.ServiceName = cfg.Discovery.ServiceName
		if cfg.Discovery.Scheme != "" {
			up.Scheme = cfg.Discovery.Scheme
		}
	default:
		for _, h := range cfg.Hosts {
			parsed, err := releasedata.ParseHost(h.Address)
			if err != nil {
				return up, err
			}
			up.Scheme = parsed.Scheme
			up.Nodes = append(up.Nodes, manifest.NodeSpec{Host: parsed.Host, Port: parsed.Port, Weight: h.Weight})
		}
	}
	return up, nil
}

func timeoutSpec(seconds int64) *manifest.TimeoutSpec {
	if seconds <= 0 {
		return nil
	}
	return &manifest.TimeoutSpec{Connect: seconds, Send: seconds, Read: seconds}
}
