package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/gateway-release-server/database"
	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/db"
	"github.com/stacklok/gateway-release-server/internal/events"
)

// DatabaseFactory keeps events in PostgreSQL
type DatabaseFactory struct {
	pool  *pgxpool.Pool
	store *events.DBStore
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory connects to the configured database and brings its
// schema up to date.
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required for database event storage")
	}

	slog.Info("Creating database-backed event storage")

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := database.MigrateUp(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewDatabaseFactoryFromPool(pool), nil
}

// NewDatabaseFactoryFromPool wraps an already migrated pool. The factory takes
// ownership of the pool and closes it on Cleanup.
func NewDatabaseFactoryFromPool(pool *pgxpool.Pool) *DatabaseFactory {
	return &DatabaseFactory{pool: pool, store: events.NewDBStore(pool)}
}

// CreateEventStore implements Factory
func (f *DatabaseFactory) CreateEventStore(_ context.Context) (events.Store, error) {
	return f.store, nil
}

// CheckReadiness pings the database
func (f *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := f.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Cleanup closes the connection pool
func (f *DatabaseFactory) Cleanup() {
	if f.pool != nil {
		slog.Info("Closing database connection pool")
		f.pool.Close()
	}
}
