package convertor

import (
	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
)

// Plugin type codes with distinct stage and resource variants
const (
	PluginRateLimit     = "rate-limit"
	PluginHeaderRewrite = "header-rewrite"
	PluginIPRestriction = "ip-restriction"
)

var scopedPluginNames = map[string]map[string]string{
	PluginRateLimit: {
		models.PluginScopeStage:    "stage-rate-limit",
		models.PluginScopeResource: "resource-rate-limit",
	},
	PluginHeaderRewrite: {
		models.PluginScopeStage:    "stage-header-rewrite",
		models.PluginScopeResource: "resource-header-rewrite",
	},
	PluginIPRestriction: {
		models.PluginScopeStage:    "stage-ip-restriction",
		models.PluginScopeResource: "resource-ip-restriction",
	},
}

// PluginName returns the manifest plugin name of a type code bound at scope.
// Codes without scoped variants keep their own name.
func PluginName(typeCode, scope string) string {
	if name, ok := scopedPluginNames[typeCode][scope]; ok {
		return name
	}
	return typeCode
}

func pluginSpecs(bindings []models.PluginBinding, scope string) []manifest.PluginSpec {
	if len(bindings) == 0 {
		return nil
	}
	out := make([]manifest.PluginSpec, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, manifest.PluginSpec{Name: PluginName(b.Type, scope), Config: b.Config})
	}
	return out
}
