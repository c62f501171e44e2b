package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/events"
)

func TestNewStorageFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     func(dir string) *config.Config
		want    any
		wantErr string
	}{
		{
			name: "nil config",
			cfg:  func(string) *config.Config { return nil },
			wantErr: "config cannot be nil",
		},
		{
			name: "memory by default",
			cfg:  func(string) *config.Config { return &config.Config{} },
			want: &MemoryFactory{},
		},
		{
			name: "file",
			cfg: func(dir string) *config.Config {
				return &config.Config{Events: config.EventsConfig{Store: config.EventStoreFile, Dir: dir}}
			},
			want: &FileFactory{},
		},
		{
			name: "database without configuration",
			cfg: func(string) *config.Config {
				return &config.Config{Events: config.EventsConfig{Store: config.EventStoreDatabase}}
			},
			wantErr: "database configuration is required",
		},
		{
			name: "unknown",
			cfg: func(string) *config.Config {
				return &config.Config{Events: config.EventsConfig{Store: "etcd"}}
			},
			wantErr: "unknown event store type: etcd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewStorageFactory(context.Background(), tt.cfg(filepath.Join(t.TempDir(), "events")))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(f.Cleanup)
			assert.IsType(t, tt.want, f)
		})
	}
}

func TestFactory_SharesStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, err := NewFileFactory(filepath.Join(t.TempDir(), "events"))
	require.NoError(t, err)
	defer f.Cleanup()

	first, err := f.CreateEventStore(ctx)
	require.NoError(t, err)
	second, err := f.CreateEventStore(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	h, err := first.CreateHistory(ctx, &events.History{Kind: events.KindPublish, GatewayID: 1, StageID: 1, ResourceVersionID: 1})
	require.NoError(t, err)
	got, err := second.GetHistory(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
}

func TestFileFactory_CheckReadiness(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "events")
	f, err := NewFileFactory(dir)
	require.NoError(t, err)

	require.NoError(t, f.CheckReadiness(context.Background()))

	f.dir = filepath.Join(dir, "missing")
	assert.Error(t, f.CheckReadiness(context.Background()))
}

func TestMemoryFactory_CheckReadiness(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewMemoryFactory().CheckReadiness(context.Background()))
}
