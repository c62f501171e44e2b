package convertor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

var testTarget = &models.MicroGateway{ID: "mgw-1", GatewayID: 1, Name: "shared", Secret: "s3cr3t"}

func testData() *releasedata.ReleaseData {
	return &releasedata.ReleaseData{
		Gateway: models.Gateway{ID: 1, Name: "demo"},
		Stage:   models.Stage{ID: 10, GatewayID: 1, Name: "prod", Vars: map[string]string{"env": "production"}},
		ResourceVersion: models.ResourceVersion{ID: 100, GatewayID: 1, Version: "1.0.0", Resources: []models.Resource{
			{
				ID: 1000, Name: "get_user", Method: "get", Path: "/users/{id}",
				Proxy: models.ResourceProxy{BackendID: 5, Path: "/api/users/{id}"},
				Auth:  &models.ResourceAuthConfig{VerifiedUserRequired: ptr.To(true), VerifiedAppRequired: ptr.To(false)},
			},
			{
				ID: 1001, Name: "orders", Method: "ANY", Path: "/orders", MatchSubpath: true,
				Proxy: models.ResourceProxy{BackendID: 6, Timeout: 5},
			},
		}},
		Backends: map[int64]releasedata.Backend{
			5: {
				Backend: models.Backend{ID: 5, GatewayID: 1, Name: "users"},
				Config: models.BackendConfig{
					BackendID: 5, StageID: 10, Type: models.BackendTypeNode, Timeout: 30,
					Hosts: []models.Host{
						{Address: "https://10.0.0.1:8443", Weight: 100},
						{Address: "https://10.0.0.2:8443", Weight: 50},
					},
					ClientCertificate: &models.Certificate{Name: "mtls", Cert: "bc", Key: "bk"},
				},
			},
			6: {
				Backend: models.Backend{ID: 6, GatewayID: 1, Name: "orders"},
				Config: models.BackendConfig{
					BackendID: 6, StageID: 10, Type: models.BackendTypeDiscovery, LoadBalance: "chash",
					Discovery: &models.DiscoveryConfig{Type: "consul", Address: "consul:8500", ServiceName: "orders"},
				},
			},
		},
		StagePlugins: []models.PluginBinding{
			{ID: 1, Type: "rate-limit", ScopeType: models.PluginScopeStage, ScopeID: 10,
				Config: map[string]any{"rates": map[string]any{"__default": "100/s"}}},
			{ID: 2, Type: "cors", ScopeType: models.PluginScopeStage, ScopeID: 10},
		},
		ResourcePlugins: map[int64][]models.PluginBinding{
			1000: {{ID: 3, Type: "ip-restriction", ScopeType: models.PluginScopeResource, ScopeID: 1000}},
		},
		Certificates: []models.Certificate{{Name: "wildcard", StageID: 10, SNIs: []string{"*.demo.local"}, Cert: "c", Key: "k"}},
		JWTKey:       models.JWTKey{GatewayID: 1, PublicKey: "pub", PrivateKey: "priv"},
		AuthConfig:   models.AuthConfig{GatewayID: 1, VerifiedAppRequired: true, ResourcePermRequired: true},
	}
}

func testOptions() Options {
	return Options{
		ControllerEndpoints: []string{"http://controller:8080"},
		BasePathTemplate:    "/api/v1/{gateway}/{stage}/{instance_id}",
		DomainTemplate:      "{gateway}.apigw.local",
		PathPrefixTemplate:  "/{stage}/",
	}
}

func decodeSpec[T any](t *testing.T, obj *manifest.Object) T {
	t.Helper()
	var spec T
	require.NoError(t, runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Spec, &spec))
	return spec
}

func byKey(objs []*manifest.Object) map[string]*manifest.Object {
	out := make(map[string]*manifest.Object, len(objs))
	for _, o := range objs {
		out[o.Key()] = o
	}
	return out
}

func TestOrchestrator_Convert(t *testing.T) {
	t.Parallel()

	objs, err := NewOrchestrator(testOptions()).Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)

	var kinds []manifest.Kind
	for _, o := range objs {
		kinds = append(kinds, o.GetKind())
		assert.Equal(t, "demo", o.Labels[naming.LabelGateway])
		assert.Equal(t, "prod", o.Labels[naming.LabelStage])
	}
	assert.Equal(t, []manifest.Kind{
		manifest.KindGatewayConfig,
		manifest.KindStage,
		manifest.KindTLS, manifest.KindTLS,
		manifest.KindEndpoints,
		manifest.KindService, manifest.KindService,
		manifest.KindResource, manifest.KindResource,
	}, kinds)

	keys := byKey(objs)
	for _, key := range []string{
		"GatewayConfig/demo-prod-config",
		"GatewayStage/demo-prod-stage",
		"GatewayTLS/demo-prod-tls-wildcard",
		"GatewayTLS/demo-prod-backend-5-tls",
		"GatewayEndpoints/demo-prod-endpoints-backend-6",
		"GatewayService/demo-prod-backend-5",
		"GatewayService/demo-prod-backend-6",
		"GatewayResource/demo-prod-get-user-1000",
		"GatewayResource/demo-prod-orders-1001",
	} {
		assert.Contains(t, keys, key)
	}
}

func TestOrchestrator_ConvertIsDeterministic(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(testOptions())
	first, err := o.Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)
	second, err := o.Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGatewayConfigConvertor(t *testing.T) {
	t.Parallel()

	objs, err := NewOrchestrator(testOptions()).Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)

	spec := decodeSpec[manifest.GatewayConfigSpec](t, byKey(objs)["GatewayConfig/demo-prod-config"])
	assert.Equal(t, "mgw-1", spec.InstanceID)
	assert.Equal(t, []string{"http://controller:8080"}, spec.Controller.Endpoints)
	assert.Equal(t, "/api/v1/demo/prod/mgw-1", spec.Controller.BasePath)
	assert.Equal(t, "s3cr3t", spec.Controller.JWTAuth.Secret)
}

type recordingLinker struct {
	calls []map[string]string
	err   error
}

func (l *recordingLinker) LinkHeaderRewrite(_ context.Context, _ models.Gateway, _ models.Stage, h map[string]string) error {
	l.calls = append(l.calls, h)
	return l.err
}

func TestStageConvertor(t *testing.T) {
	t.Parallel()

	t.Run("without header rewrite", func(t *testing.T) {
		t.Parallel()

		linker := &recordingLinker{}
		opts := testOptions()
		opts.Linker = linker

		objs, err := NewOrchestrator(opts).Convert(context.Background(), testData(), testTarget)
		require.NoError(t, err)

		spec := decodeSpec[manifest.StageSpec](t, byKey(objs)["GatewayStage/demo-prod-stage"])
		assert.Equal(t, "demo.apigw.local", spec.Domain)
		assert.Equal(t, "/prod/", spec.PathPrefix)
		assert.Equal(t, map[string]string{"env": "production"}, spec.Vars)
		assert.Nil(t, spec.Rewrite)
		require.Len(t, spec.Plugins, 2)
		assert.Equal(t, "stage-rate-limit", spec.Plugins[0].Name)
		assert.Equal(t, "cors", spec.Plugins[1].Name)
		assert.Equal(t, &manifest.StageJWT{Issuer: "demo", PublicKey: "pub", PrivateKey: "priv"}, spec.JWT)
		assert.Empty(t, linker.calls)
	})

	t.Run("with header rewrite", func(t *testing.T) {
		t.Parallel()

		linker := &recordingLinker{}
		opts := testOptions()
		opts.Linker = linker

		data := testData()
		data.Stage.RewriteHeaders = map[string]string{"X-Stage": "prod", "X-Env": "p"}

		objs, err := NewOrchestrator(opts).Convert(context.Background(), data, testTarget)
		require.NoError(t, err)

		spec := decodeSpec[manifest.StageSpec](t, byKey(objs)["GatewayStage/demo-prod-stage"])
		require.NotNil(t, spec.Rewrite)
		assert.True(t, spec.Rewrite.Enabled)
		require.Len(t, spec.Plugins, 3)
		assert.Equal(t, "stage-header-rewrite", spec.Plugins[2].Name)
		assert.Equal(t, []any{
			map[string]any{"key": "X-Env", "value": "p"},
			map[string]any{"key": "X-Stage", "value": "prod"},
		}, spec.Plugins[2].Config["set"])
		require.Len(t, linker.calls, 1)
	})

	t.Run("linker failure aborts", func(t *testing.T) {
		t.Parallel()

		opts := testOptions()
		opts.Linker = &recordingLinker{err: errors.New("bindings unavailable")}

		data := testData()
		data.Stage.RewriteHeaders = map[string]string{"X-Stage": "prod"}

		_, err := NewOrchestrator(opts).Convert(context.Background(), data, testTarget)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to convert GatewayStage")
	})
}

func TestServiceConvertor(t *testing.T) {
	t.Parallel()

	objs, err := NewOrchestrator(testOptions()).Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)
	keys := byKey(objs)

	users := decodeSpec[manifest.ServiceSpec](t, keys["GatewayService/demo-prod-backend-5"])
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, "roundrobin", users.Upstream.Type)
	assert.Equal(t, "https", users.Upstream.Scheme)
	assert.Equal(t, []manifest.NodeSpec{
		{Host: "10.0.0.1", Port: 8443, Weight: 100},
		{Host: "10.0.0.2", Port: 8443, Weight: 50},
	}, users.Upstream.Nodes)
	assert.Equal(t, &manifest.TimeoutSpec{Connect: 30, Send: 30, Read: 30}, users.Upstream.Timeout)
	assert.Equal(t, "demo-prod-backend-5-tls", users.Upstream.TLSName)

	orders := decodeSpec[manifest.ServiceSpec](t, keys["GatewayService/demo-prod-backend-6"])
	assert.Equal(t, "chash", orders.Upstream.Type)
	assert.Equal(t, "consul", orders.Upstream.DiscoveryType)
	assert.Equal(t, "orders", orders.Upstream.ServiceName)
	assert.Empty(t, orders.Upstream.Nodes)
	assert.Empty(t, orders.Upstream.TLSName)
	assert.Nil(t, orders.Upstream.Timeout)
}

func TestResourceConvertor(t *testing.T) {
	t.Parallel()

	objs, err := NewOrchestrator(testOptions()).Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)
	keys := byKey(objs)

	getUser := decodeSpec[manifest.ResourceSpec](t, keys["GatewayResource/demo-prod-get-user-1000"])
	assert.Equal(t, "/users/:id", getUser.URI)
	assert.Equal(t, []string{"GET"}, getUser.Methods)
	assert.Equal(t, "demo-prod-backend-5", getUser.Service)
	assert.Equal(t, &manifest.ResourceRewrite{Enabled: true, Path: "/api/users/:id"}, getUser.Rewrite)
	assert.Equal(t, &manifest.TimeoutSpec{Connect: 30, Send: 30, Read: 30}, getUser.Timeout)
	assert.Equal(t, manifest.ResourceAuth{
		VerifiedAppRequired:  false,
		VerifiedUserRequired: true,
		ResourcePermRequired: true,
	}, getUser.Auth)
	require.Len(t, getUser.Plugins, 1)
	assert.Equal(t, "resource-ip-restriction", getUser.Plugins[0].Name)

	orders := decodeSpec[manifest.ResourceSpec](t, keys["GatewayResource/demo-prod-orders-1001"])
	assert.Empty(t, orders.Methods)
	assert.True(t, orders.MatchSubpath)
	assert.Nil(t, orders.Rewrite)
	assert.Equal(t, &manifest.TimeoutSpec{Connect: 5, Send: 5, Read: 5}, orders.Timeout)
	assert.Equal(t, manifest.ResourceAuth{VerifiedAppRequired: true, ResourcePermRequired: true}, orders.Auth)
	assert.Equal(t, "1001", keys["GatewayResource/demo-prod-orders-1001"].Labels["resource-id"])
}

func TestTLSAndEndpoints_Empty(t *testing.T) {
	t.Parallel()

	data := testData()
	data.Certificates = nil
	delete(data.Backends, 6)
	data.ResourceVersion.Resources = data.ResourceVersion.Resources[:1]
	b := data.Backends[5]
	b.Config.ClientCertificate = nil
	data.Backends[5] = b

	objs, err := NewOrchestrator(testOptions()).Convert(context.Background(), data, testTarget)
	require.NoError(t, err)
	for _, o := range objs {
		assert.NotEqual(t, manifest.KindTLS, o.GetKind())
		assert.NotEqual(t, manifest.KindEndpoints, o.GetKind())
	}
	assert.Len(t, objs, 4)
}

func TestPluginName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code, scope, want string
	}{
		{"rate-limit", models.PluginScopeStage, "stage-rate-limit"},
		{"rate-limit", models.PluginScopeResource, "resource-rate-limit"},
		{"header-rewrite", models.PluginScopeStage, "stage-header-rewrite"},
		{"header-rewrite", models.PluginScopeResource, "resource-header-rewrite"},
		{"ip-restriction", models.PluginScopeStage, "stage-ip-restriction"},
		{"ip-restriction", models.PluginScopeResource, "resource-ip-restriction"},
		{"cors", models.PluginScopeStage, "cors"},
		{"rate-limit", "service", "rate-limit"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PluginName(tt.code, tt.scope), "%s/%s", tt.code, tt.scope)
	}
}

func TestConvertPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/users/:id/orders/:order_id", ConvertPath("/users/{id}/orders/{order_id}"))
	assert.Equal(t, "/static", ConvertPath("/static"))
}

type fixedConvertor struct {
	kind manifest.Kind
	objs []*manifest.Object
}

func (f *fixedConvertor) Kind() manifest.Kind { return f.kind }

func (f *fixedConvertor) Convert(context.Context, *releasedata.ReleaseData, *models.MicroGateway) ([]*manifest.Object, error) {
	return f.objs, nil
}

func TestOrchestrator_RejectsDuplicatesAndInvalid(t *testing.T) {
	t.Parallel()

	labels := naming.Labels("demo", "prod", nil)
	a, err := manifest.New(manifest.KindTLS, "dup", labels, &manifest.TLSSpec{Cert: "c", Key: "k"})
	require.NoError(t, err)
	b := a.DeepCopy()

	o := NewOrchestratorWith([]manifest.Kind{manifest.KindTLS, manifest.KindService},
		&fixedConvertor{kind: manifest.KindTLS, objs: []*manifest.Object{a, b}},
	)
	_, err = o.Convert(context.Background(), testData(), testTarget)
	require.Error(t, err)
	assert.True(t, releasedata.IsInputError(err))
	assert.Contains(t, err.Error(), "duplicate manifest GatewayTLS/dup")

	invalid := &manifest.Object{}
	invalid.Kind = string(manifest.KindTLS)
	o = NewOrchestratorWith([]manifest.Kind{manifest.KindTLS},
		&fixedConvertor{kind: manifest.KindTLS, objs: []*manifest.Object{invalid}},
	)
	_, err = o.Convert(context.Background(), testData(), testTarget)
	require.Error(t, err)
	assert.True(t, releasedata.IsInputError(err))

	// a convertor producing nothing is not an error
	o = NewOrchestratorWith([]manifest.Kind{manifest.KindTLS}, &fixedConvertor{kind: manifest.KindTLS})
	objs, err := o.Convert(context.Background(), testData(), testTarget)
	require.NoError(t, err)
	assert.Empty(t, objs)
}
