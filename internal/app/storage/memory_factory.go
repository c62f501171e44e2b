package storage

import (
	"context"
	"log/slog"

	"github.com/stacklok/gateway-release-server/internal/events"
)

// MemoryFactory keeps events in process memory. They are lost on restart.
type MemoryFactory struct {
	store *events.MemoryStore
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a factory around a fresh in-memory store
func NewMemoryFactory() *MemoryFactory {
	slog.Info("Creating in-memory event storage")
	return &MemoryFactory{store: events.NewMemoryStore()}
}

// CreateEventStore implements Factory
func (f *MemoryFactory) CreateEventStore(_ context.Context) (events.Store, error) {
	return f.store, nil
}

// CheckReadiness implements Factory
func (*MemoryFactory) CheckReadiness(_ context.Context) error {
	return nil
}

// Cleanup implements Factory
func (*MemoryFactory) Cleanup() {}
