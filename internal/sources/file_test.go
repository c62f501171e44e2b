package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/models"
)

func TestNewFileSource(t *testing.T) {
	t.Parallel()

	src, err := NewFileSource("testdata/snapshot.yaml")
	require.NoError(t, err)

	ctx := context.Background()

	gw, err := src.GetGateway(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "demo", gw.Name)

	stage, err := src.GetStage(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"env": "production"}, stage.Vars)

	rv, err := src.GetResourceVersion(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, rv.Resources, 1)
	assert.Equal(t, "/users/{id}", rv.Resources[0].Path)
	assert.Equal(t, int64(5), rv.Resources[0].Proxy.BackendID)

	configs, err := src.ListBackendConfigs(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "http://10.0.0.1:8080", configs[0].Hosts[0].Address)

	bindings, err := src.ListPluginBindings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, map[string]any{"__default": "100/s"}, bindings[0].Config["rates"])

	assert.Len(t, src.Hash(), 64)
	assert.Equal(t, "testdata/snapshot.yaml", src.Path())
}

func TestNewFileSource_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewFileSource("")
	assert.Error(t, err)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("gateways: [\n"), 0600))
	_, err = NewFileSource(bad)
	assert.Error(t, err)

	unknown := filepath.Join(t.TempDir(), "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("routes: []\n"), 0600))
	_, err = NewFileSource(unknown)
	assert.Error(t, err, "unknown fields are rejected")
}

func TestStaticSource_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := NewStaticSource(&Snapshot{
		Gateways: []models.Gateway{{ID: 1, Name: "demo"}},
		Stages:   []models.Stage{{ID: 10, GatewayID: 2, Name: "prod"}},
	})

	_, err := src.GetGateway(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.GetStage(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound, "stage belongs to another gateway")

	_, err = src.GetResourceVersion(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.GetMicroGateway(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.GetJWTKey(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.GetAuthConfig(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.ListCertificates(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticSource_ListBackendConfigs(t *testing.T) {
	t.Parallel()

	src := NewStaticSource(&Snapshot{
		Backends: []models.Backend{
			{ID: 1, GatewayID: 1, Name: "a"},
			{ID: 2, GatewayID: 2, Name: "b"},
		},
		BackendConfigs: []models.BackendConfig{
			{BackendID: 1, StageID: 10, Type: models.BackendTypeNode},
			{BackendID: 1, StageID: 11, Type: models.BackendTypeNode},
			{BackendID: 2, StageID: 10, Type: models.BackendTypeNode},
		},
	})

	configs, err := src.ListBackendConfigs(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, int64(1), configs[0].BackendID)
	assert.Equal(t, int64(10), configs[0].StageID)
}

func TestNewSource(t *testing.T) {
	t.Parallel()

	_, err := NewSource(nil)
	assert.Error(t, err)

	_, err = NewSource(&config.SourceConfig{})
	assert.Error(t, err)

	src, err := NewSource(&config.SourceConfig{File: &config.FileSourceConfig{Path: "testdata/snapshot.yaml"}})
	require.NoError(t, err)
	assert.NotNil(t, src)
}
