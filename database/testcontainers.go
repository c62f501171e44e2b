//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const eventLogImage = "postgres:16-alpine"

type silentLogger struct{}

func (silentLogger) Printf(string, ...any) {}

var _ tclog.Logger = silentLogger{}

// StartEventLogDB runs a throwaway Postgres container with the event log schema applied.
// The container and pool are released when the test finishes.
func StartEventLogDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx, eventLogImage,
		postgres.WithDatabase("gw_release"),
		postgres.WithUsername("gw_release"),
		postgres.WithPassword("gw_release"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(silentLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, MigrateUp(ctx, pool))
	return pool
}
