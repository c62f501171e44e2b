package convertor

import (
	"context"
	"slices"
	"strconv"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

type tlsConvertor struct{}

func (*tlsConvertor) Kind() manifest.Kind { return manifest.KindTLS }

// Convert emits the stage certificates followed by backend client certificates
func (c *tlsConvertor) Convert(
	_ context.Context,
	data *releasedata.ReleaseData,
	_ *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name

	var out []*manifest.Object
	add := func(leaf string, extra map[string]string, cert models.Certificate) error {
		obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, leaf), naming.Labels(gw, stage, extra), &manifest.TLSSpec{
			SNIs:   slices.Clone(cert.SNIs),
			CACert: cert.CACert,
			Cert:   cert.Cert,
			Key:    cert.Key,
		})
		if err != nil {
			return err
		}
		out = append(out, obj)
		return nil
	}

	for _, cert := range data.Certificates {
		if err := add("tls-"+cert.Name, nil, cert); err != nil {
			return nil, err
		}
	}
	for _, id := range data.BackendIDs() {
		cert := data.Backends[id].Config.ClientCertificate
		if cert == nil {
			continue
		}
		extra := map[string]string{"backend-id": strconv.FormatInt(id, 10)}
		if err := add(backendTLSLeaf(id), extra, *cert); err != nil {
			return nil, err
		}
	}
	return out, nil
}
