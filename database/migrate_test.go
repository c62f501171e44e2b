//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUpDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := StartEventLogDB(t)

	migrations, err := Migrations()
	require.NoError(t, err)
	latest := migrations[len(migrations)-1].Version

	version, err := Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, latest, version)

	// applying again is a no-op
	require.NoError(t, MigrateUp(ctx, pool))

	require.NoError(t, MigrateDown(ctx, pool, len(migrations)))
	version, err = Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var exists bool
	err = pool.QueryRow(ctx, "SELECT to_regclass('public.publish_event') IS NOT NULL").Scan(&exists)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, MigrateUp(ctx, pool))
	version, err = Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
}
