package convertor

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

type stageConvertor struct {
	domain     string
	pathPrefix string
	linker     PluginLinker
}

func (*stageConvertor) Kind() manifest.Kind { return manifest.KindStage }

func (c *stageConvertor) Convert(
	ctx context.Context,
	data *releasedata.ReleaseData,
	_ *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name
	render := strings.NewReplacer("{gateway}", gw, "{stage}", stage).Replace

	spec := &manifest.StageSpec{
		Domain:      render(c.domain),
		PathPrefix:  render(c.pathPrefix),
		Description: data.Stage.Description,
		Vars:        maps.Clone(data.Stage.Vars),
		Plugins:     pluginSpecs(data.StagePlugins, models.PluginScopeStage),
		JWT: &manifest.StageJWT{
			Issuer:     gw,
			PublicKey:  data.JWTKey.PublicKey,
			PrivateKey: data.JWTKey.PrivateKey,
		},
	}

	if headers := data.Stage.RewriteHeaders; len(headers) > 0 {
		spec.Rewrite = &manifest.StageRewrite{Enabled: true, Headers: maps.Clone(headers)}
		spec.Plugins = append(spec.Plugins, manifest.PluginSpec{
			Name:   PluginName(PluginHeaderRewrite, models.PluginScopeStage),
			Config: headerRewriteConfig(headers),
		})
		if err := c.linker.LinkHeaderRewrite(ctx, data.Gateway, data.Stage, headers); err != nil {
			return nil, fmt.Errorf("failed to link header rewrite plugin: %w", err)
		}
	}

	obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, "stage"), naming.Labels(gw, stage, nil), spec)
	if err != nil {
		return nil, err
	}
	return []*manifest.Object{obj}, nil
}

// headerRewriteConfig renders headers as an ordered "set" list
func headerRewriteConfig(headers map[string]string) map[string]any {
	set := make([]any, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		set = append(set, map[string]any{"key": k, "value": headers[k]})
	}
	return map[string]any{"set": set, "remove": []any{}}
}
