// Package storage creates the publish event store selected by the configuration
// and owns the resources behind it.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/events"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates the event store and manages the lifecycle of its backing
// resources (e.g., database connections).
type Factory interface {
	// CreateEventStore returns the store publish histories and events are kept in.
	// Repeated calls return the same store.
	CreateEventStore(ctx context.Context) (events.Store, error)

	// CheckReadiness reports whether the backing storage is reachable
	CheckReadiness(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured event store type
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.Events.GetStore() {
	case config.EventStoreMemory:
		return NewMemoryFactory(), nil
	case config.EventStoreFile:
		return NewFileFactory(cfg.Events.GetDir())
	case config.EventStoreDatabase:
		return NewDatabaseFactory(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown event store type: %s", cfg.Events.GetStore())
	}
}
