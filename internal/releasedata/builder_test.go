package releasedata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/sources"
)

const rateLimitSchema = `{
	"type": "object",
	"required": ["rates"],
	"properties": {
		"rates": {"type": "object", "additionalProperties": {"type": "string"}}
	}
}`

func testSnapshot() *sources.Snapshot {
	return &sources.Snapshot{
		Gateways: []models.Gateway{{ID: 1, Name: "demo"}},
		Stages:   []models.Stage{{ID: 10, GatewayID: 1, Name: "prod"}},
		ResourceVersions: []models.ResourceVersion{{
			ID:        100,
			GatewayID: 1,
			Version:   "1.0.0",
			Resources: []models.Resource{
				{ID: 1000, Name: "get_user", Method: "GET", Path: "/users/{id}", Proxy: models.ResourceProxy{BackendID: 5}},
				{ID: 1001, Name: "list_orders", Method: "ANY", Path: "/orders", Proxy: models.ResourceProxy{BackendID: 6}},
			},
		}},
		MicroGateways: []models.MicroGateway{{ID: "mgw-1", GatewayID: 1, Name: "shared", Secret: "s"}},
		Backends: []models.Backend{
			{ID: 5, GatewayID: 1, Name: "users"},
			{ID: 6, GatewayID: 1, Name: "orders"},
		},
		BackendConfigs: []models.BackendConfig{
			{BackendID: 5, StageID: 10, Type: models.BackendTypeNode, Hosts: []models.Host{
				{Address: "http://10.0.0.1:8080", Weight: 100},
				{Address: "http://10.0.0.2:8080", Weight: 50},
			}},
			{BackendID: 6, StageID: 10, Type: models.BackendTypeDiscovery, Discovery: &models.DiscoveryConfig{
				Type: "consul", Address: "consul:8500", ServiceName: "orders",
			}},
		},
		PluginTypes: []models.PluginType{{Code: "rate-limit", Schema: rateLimitSchema}},
		PluginBindings: []models.PluginBinding{
			{ID: 2, GatewayID: 1, Type: "rate-limit", ScopeType: models.PluginScopeResource, ScopeID: 1000,
				Config: map[string]any{"rates": map[string]any{"app": "10/s"}}},
			{ID: 1, GatewayID: 1, Type: "rate-limit", ScopeType: models.PluginScopeStage, ScopeID: 10,
				Config: map[string]any{"rates": map[string]any{"__default": "100/s"}}},
			{ID: 3, GatewayID: 1, Type: "ip-restriction", ScopeType: models.PluginScopeStage, ScopeID: 11},
		},
		Certificates: []models.Certificate{{Name: "wildcard", StageID: 10, SNIs: []string{"*.demo.local"}, Cert: "c", Key: "k"}},
		JWTKeys:      []models.JWTKey{{GatewayID: 1, PublicKey: "pub", PrivateKey: "priv"}},
		AuthConfigs:  []models.AuthConfig{{GatewayID: 1, VerifiedAppRequired: true}},
	}
}

var testRelease = models.Release{GatewayID: 1, StageID: 10, ResourceVersionID: 100}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	data, err := NewBuilder(sources.NewStaticSource(testSnapshot())).Build(context.Background(), testRelease)
	require.NoError(t, err)

	assert.Equal(t, "demo", data.Gateway.Name)
	assert.Equal(t, "prod", data.Stage.Name)
	assert.Equal(t, []int64{5, 6}, data.BackendIDs())

	users, ok := data.Backend(5)
	require.True(t, ok)
	assert.Equal(t, "users", users.Name)
	assert.Len(t, users.Config.Hosts, 2)

	require.Len(t, data.StagePlugins, 1)
	assert.Equal(t, int64(1), data.StagePlugins[0].ID)
	require.Len(t, data.ResourcePlugins[1000], 1)
	assert.Empty(t, data.ResourcePlugins[1001])

	assert.Len(t, data.Certificates, 1)
	assert.Equal(t, "pub", data.JWTKey.PublicKey)
	assert.True(t, data.AuthConfig.VerifiedAppRequired)
}

func TestBuilder_Build_MissingAuthConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	snap := testSnapshot()
	snap.AuthConfigs = nil

	data, err := NewBuilder(sources.NewStaticSource(snap)).Build(context.Background(), testRelease)
	require.NoError(t, err)
	assert.Equal(t, models.AuthConfig{GatewayID: 1}, data.AuthConfig)
}

func TestBuilder_Build_InputErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*sources.Snapshot)
		release   models.Release
		wantField string
	}{
		{
			name:      "unknown gateway",
			mutate:    func(*sources.Snapshot) {},
			release:   models.Release{GatewayID: 2, StageID: 10, ResourceVersionID: 100},
			wantField: "gatewayID",
		},
		{
			name:      "unknown stage",
			mutate:    func(*sources.Snapshot) {},
			release:   models.Release{GatewayID: 1, StageID: 99, ResourceVersionID: 100},
			wantField: "stageID",
		},
		{
			name:      "missing jwt key",
			mutate:    func(s *sources.Snapshot) { s.JWTKeys = nil },
			wantField: "jwtKey",
		},
		{
			name:      "version is not semver",
			mutate:    func(s *sources.Snapshot) { s.ResourceVersions[0].Version = "latest" },
			wantField: "resourceVersion.version",
		},
		{
			name:      "resource backend without stage config",
			mutate:    func(s *sources.Snapshot) { s.BackendConfigs = s.BackendConfigs[:1] },
			wantField: "resources[list_orders].proxy.backendID",
		},
		{
			name:      "node backend without hosts",
			mutate:    func(s *sources.Snapshot) { s.BackendConfigs[0].Hosts = nil },
			wantField: "backends[users].hosts",
		},
		{
			name: "host without port",
			mutate: func(s *sources.Snapshot) {
				s.BackendConfigs[0].Hosts = []models.Host{{Address: "http://10.0.0.1"}}
			},
			wantField: "backends[users].hosts[0]",
		},
		{
			name: "hosts with mixed schemes",
			mutate: func(s *sources.Snapshot) {
				s.BackendConfigs[0].Hosts[1].Address = "https://10.0.0.2:8443"
			},
			wantField: "backends[users].hosts[1]",
		},
		{
			name:      "discovery without service name",
			mutate:    func(s *sources.Snapshot) { s.BackendConfigs[1].Discovery.ServiceName = "" },
			wantField: "backends[orders].discovery.serviceName",
		},
		{
			name:      "unknown backend type",
			mutate:    func(s *sources.Snapshot) { s.BackendConfigs[1].Type = "lambda" },
			wantField: "backends[orders].type",
		},
		{
			name: "client certificate without key",
			mutate: func(s *sources.Snapshot) {
				s.BackendConfigs[0].ClientCertificate = &models.Certificate{Name: "mtls", Cert: "c"}
			},
			wantField: "backends[users].clientCertificate",
		},
		{
			name: "plugin config violates schema",
			mutate: func(s *sources.Snapshot) {
				s.PluginBindings[1].Config = map[string]any{"rates": map[string]any{"__default": 100}}
			},
			wantField: "plugins[1].config",
		},
		{
			name:      "plugin schema does not compile",
			mutate:    func(s *sources.Snapshot) { s.PluginTypes[0].Schema = `{"type": 5}` },
			wantField: "pluginTypes[rate-limit].schema",
		},
		{
			name:      "stage certificate without cert",
			mutate:    func(s *sources.Snapshot) { s.Certificates[0].Cert = "" },
			wantField: "certificates[wildcard]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			snap := testSnapshot()
			tt.mutate(snap)
			rel := tt.release
			if rel == (models.Release{}) {
				rel = testRelease
			}

			_, err := NewBuilder(sources.NewStaticSource(snap)).Build(context.Background(), rel)
			require.Error(t, err)
			require.True(t, IsInputError(err), "expected input error, got %v", err)

			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.wantField, ie.Field)
		})
	}
}

type brokenSource struct {
	*sources.StaticSource
}

var errUnavailable = errors.New("source unavailable")

func (brokenSource) ListBackends(context.Context, int64) ([]models.Backend, error) {
	return nil, errUnavailable
}

func TestBuilder_Build_SourceFailureIsRetryable(t *testing.T) {
	t.Parallel()

	src := brokenSource{StaticSource: sources.NewStaticSource(testSnapshot())}
	_, err := NewBuilder(src).Build(context.Background(), testRelease)
	require.ErrorIs(t, err, errUnavailable)
	assert.False(t, IsInputError(err))
}

func TestParseHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    Host
		wantErr bool
	}{
		{address: "http://10.0.0.1:8080", want: Host{Scheme: "http", Host: "10.0.0.1", Port: 8080}},
		{address: "https://api.example.com:443/", want: Host{Scheme: "https", Host: "api.example.com", Port: 443}},
		{address: "http://[::1]:9000", want: Host{Scheme: "http", Host: "::1", Port: 9000}},
		{address: "10.0.0.1:8080", wantErr: true},
		{address: "grpc://10.0.0.1:8080", wantErr: true},
		{address: "http://10.0.0.1", wantErr: true},
		{address: "http://10.0.0.1:99999", wantErr: true},
		{address: "http://10.0.0.1:80/api", wantErr: true},
		{address: "http://:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			got, err := ParseHost(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputError(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad")
	err := joinWrap(inputErr("stageID", "not found", cause))

	assert.True(t, IsInputError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid stageID: not found", (&InputError{Field: "stageID", Reason: "not found"}).Error())
	assert.False(t, IsInputError(cause))
}

func joinWrap(err error) error {
	return errors.Join(errors.New("build failed"), err)
}
