package releasedata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stacklok/gateway-release-server/internal/models"
)

type validator struct {
	types   map[string]models.PluginType
	schemas map[string]*jsonschema.Schema
}

func newValidator(pluginTypes []models.PluginType) *validator {
	v := &validator{
		types:   make(map[string]models.PluginType, len(pluginTypes)),
		schemas: make(map[string]*jsonschema.Schema),
	}
	for _, pt := range pluginTypes {
		v.types[pt.Code] = pt
	}
	return v
}

func (v *validator) validate(data *ReleaseData) error {
	if _, err := semver.NewVersion(data.ResourceVersion.Version); err != nil {
		return inputErr("resourceVersion.version", "not a semantic version", err)
	}

	for _, id := range data.BackendIDs() {
		if err := validateBackendConfig(data.Backends[id]); err != nil {
			return err
		}
	}

	for _, r := range data.ResourceVersion.Resources {
		if _, ok := data.Backends[r.Proxy.BackendID]; !ok {
			return inputErr(
				fmt.Sprintf("resources[%s].proxy.backendID", r.Name),
				fmt.Sprintf("backend %d has no config for stage %s", r.Proxy.BackendID, data.Stage.Name),
				nil,
			)
		}
	}

	for _, pb := range data.StagePlugins {
		if err := v.validatePlugin(pb); err != nil {
			return err
		}
	}
	for _, r := range data.ResourceVersion.Resources {
		for _, pb := range data.ResourcePlugins[r.ID] {
			if err := v.validatePlugin(pb); err != nil {
				return err
			}
		}
	}

	for _, c := range data.Certificates {
		if err := validateCertificate("certificates["+c.Name+"]", c); err != nil {
			return err
		}
	}
	return nil
}

func validateBackendConfig(b Backend) error {
	field := fmt.Sprintf("backends[%s]", b.Name)
	cfg := b.Config

	switch cfg.Type {
	case models.BackendTypeNode:
		if len(cfg.Hosts) == 0 {
			return inputErr(field+".hosts", "at least one host is required", nil)
		}
		scheme := ""
		for i, h := range cfg.Hosts {
			parsed, err := ParseHost(h.Address)
			if err != nil {
				return inputErr(fmt.Sprintf("%s.hosts[%d]", field, i), "malformed address", err)
			}
			if scheme != "" && parsed.Scheme != scheme {
				return inputErr(fmt.Sprintf("%s.hosts[%d]", field, i), "hosts must share one scheme", nil)
			}
			scheme = parsed.Scheme
		}
	case models.BackendTypeDiscovery:
		if cfg.Discovery == nil || cfg.Discovery.Type == "" {
			return inputErr(field+".discovery.type", "discovery type is required", nil)
		}
		if cfg.Discovery.ServiceName == "" {
			return inputErr(field+".discovery.serviceName", "service name is required", nil)
		}
	default:
		return inputErr(field+".type", fmt.Sprintf("unknown backend type %q", cfg.Type), nil)
	}

	if cfg.ClientCertificate != nil {
		return validateCertificate(field+".clientCertificate", *cfg.ClientCertificate)
	}
	return nil
}

func validateCertificate(field string, c models.Certificate) error {
	if strings.TrimSpace(c.Cert) == "" || strings.TrimSpace(c.Key) == "" {
		return inputErr(field, "certificate and key are required", nil)
	}
	return nil
}

// validatePlugin checks a binding config against the JSON schema of its type.
// Types without a schema accept any config.
func (v *validator) validatePlugin(pb models.PluginBinding) error {
	field := fmt.Sprintf("plugins[%d].config", pb.ID)

	sch, err := v.schema(pb.Type)
	if err != nil {
		return inputErr(fmt.Sprintf("pluginTypes[%s].schema", pb.Type), "schema does not compile", err)
	}
	if sch == nil {
		return nil
	}

	// normalise the config to the value types the validator expects
	raw, err := json.Marshal(pb.Config)
	if err != nil {
		return inputErr(field, "config is not JSON encodable", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return inputErr(field, "config is not valid JSON", err)
	}
	if err := sch.Validate(inst); err != nil {
		return inputErr(field, fmt.Sprintf("config does not match the %s schema", pb.Type), err)
	}
	return nil
}

func (v *validator) schema(code string) (*jsonschema.Schema, error) {
	if sch, ok := v.schemas[code]; ok {
		return sch, nil
	}

	pt, ok := v.types[code]
	if !ok || strings.TrimSpace(pt.Schema) == "" {
		v.schemas[code] = nil
		return nil, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(pt.Schema))
	if err != nil {
		return nil, err
	}
	url := "plugin-" + code + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	v.schemas[code] = sch
	return sch, nil
}
