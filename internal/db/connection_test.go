package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gateway-release-server/internal/config"
)

func writePassword(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t!\n"), 0600))
	return path
}

func TestPoolConfig(t *testing.T) {
	t.Parallel()

	passwordFile := writePassword(t)
	base := func() *config.DatabaseConfig {
		return &config.DatabaseConfig{
			Host:         "db.internal",
			Port:         5432,
			User:         "gw",
			PasswordFile: passwordFile,
			Database:     "releases",
			SSLMode:      "disable",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.DatabaseConfig)
		wantErr string
		check   func(t *testing.T, cfg *config.DatabaseConfig)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *config.DatabaseConfig) {
				t.Helper()
				poolCfg, err := PoolConfig(cfg)
				require.NoError(t, err)
				assert.Equal(t, int32(defaultMaxOpenConns), poolCfg.MaxConns)
				assert.Equal(t, int32(defaultMaxIdleConns), poolCfg.MinConns)
				assert.Equal(t, defaultConnMaxLifetime, poolCfg.MaxConnLifetime)
				assert.Equal(t, defaultConnectTimeout, poolCfg.ConnConfig.ConnectTimeout)
				assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
				assert.Equal(t, uint16(5432), poolCfg.ConnConfig.Port)
				assert.Equal(t, "s3cr3t!", poolCfg.ConnConfig.Password)
				assert.Equal(t, "releases", poolCfg.ConnConfig.Database)
			},
		},
		{
			name: "overrides",
			mutate: func(c *config.DatabaseConfig) {
				c.MaxOpenConns = 4
				c.MaxIdleConns = 10
				c.ConnMaxLifetime = "1h"
			},
			check: func(t *testing.T, cfg *config.DatabaseConfig) {
				t.Helper()
				poolCfg, err := PoolConfig(cfg)
				require.NoError(t, err)
				assert.Equal(t, int32(4), poolCfg.MaxConns)
				assert.Equal(t, int32(4), poolCfg.MinConns)
				assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
			},
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: "host is required"},
		{name: "missing port", mutate: func(c *config.DatabaseConfig) { c.Port = 0 }, wantErr: "port is required"},
		{name: "missing user", mutate: func(c *config.DatabaseConfig) { c.User = "" }, wantErr: "user is required"},
		{name: "missing database", mutate: func(c *config.DatabaseConfig) { c.Database = "" }, wantErr: "name is required"},
		{
			name:    "bad lifetime",
			mutate:  func(c *config.DatabaseConfig) { c.ConnMaxLifetime = "forever" },
			wantErr: "invalid connection max lifetime",
		},
		{
			name:    "unreadable password file",
			mutate:  func(c *config.DatabaseConfig) { c.PasswordFile = filepath.Join(t.TempDir(), "missing") },
			wantErr: "failed to get database password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			if tt.check != nil {
				tt.check(t, cfg)
				return
			}
			_, err := PoolConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := PoolConfig(nil)
	assert.Error(t, err)
}
