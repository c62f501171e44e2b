package convertor

import (
	"cmp"
	"context"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/utils/ptr"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

const methodAny = "ANY"

var pathParam = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ConvertPath rewrites "{param}" path segments to the ":param" form
func ConvertPath(path string) string {
	return pathParam.ReplaceAllString(path, ":$1")
}

type resourceConvertor struct{}

func (*resourceConvertor) Kind() manifest.Kind { return manifest.KindResource }

func (c *resourceConvertor) Convert(
	_ context.Context,
	data *releasedata.ReleaseData,
	_ *models.MicroGateway,
) ([]*manifest.Object, error) {
	gw, stage := data.Gateway.Name, data.Stage.Name

	out := make([]*manifest.Object, 0, len(data.ResourceVersion.Resources))
	for _, r := range data.ResourceVersion.Resources {
		backend, _ := data.Backend(r.Proxy.BackendID)

		spec := &manifest.ResourceSpec{
			ID:              r.ID,
			Name:            r.Name,
			URI:             ConvertPath(r.Path),
			Methods:         methods(r.Method),
			MatchSubpath:    r.MatchSubpath,
			EnableWebsocket: r.EnableWebsocket,
			Service:         naming.Name(gw, stage, serviceLeaf(r.Proxy.BackendID)),
			Rewrite:         rewrite(r.Proxy),
			Timeout:         timeoutSpec(cmp.Or(r.Proxy.Timeout, backend.Config.Timeout)),
			Auth:            mergeAuth(data.AuthConfig, r.Auth),
			Plugins:         pluginSpecs(data.ResourcePlugins[r.ID], models.PluginScopeResource),
		}

		id := strconv.FormatInt(r.ID, 10)
		labels := naming.Labels(gw, stage, map[string]string{"resource-id": id})
		obj, err := manifest.New(c.Kind(), naming.Name(gw, stage, r.Name+"-"+id), labels, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func methods(method string) []string {
	m := strings.ToUpper(method)
	if m == "" || m == methodAny {
		return nil
	}
	return []string{m}
}

func rewrite(p models.ResourceProxy) *manifest.ResourceRewrite {
	method := strings.ToUpper(p.Method)
	if method == methodAny {
		method = ""
	}
	if p.Path == "" && method == "" {
		return nil
	}
	return &manifest.ResourceRewrite{Enabled: true, Path: ConvertPath(p.Path), Method: method}
}

// mergeAuth applies the per resource overrides on top of the gateway defaults
func mergeAuth(defaults models.AuthConfig, overrides *models.ResourceAuthConfig) manifest.ResourceAuth {
	auth := manifest.ResourceAuth{
		VerifiedAppRequired:     defaults.VerifiedAppRequired,
		VerifiedUserRequired:    defaults.VerifiedUserRequired,
		ResourcePermRequired:    defaults.ResourcePermRequired,
		SkipUserVerifiedForApps: defaults.SkipUserVerifiedForApps,
	}
	if overrides == nil {
		return auth
	}
	auth.VerifiedAppRequired = ptr.Deref(overrides.VerifiedAppRequired, auth.VerifiedAppRequired)
	auth.VerifiedUserRequired = ptr.Deref(overrides.VerifiedUserRequired, auth.VerifiedUserRequired)
	auth.ResourcePermRequired = ptr.Deref(overrides.ResourcePermRequired, auth.ResourcePermRequired)
	return auth
}
