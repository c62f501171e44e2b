package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/stacklok/gateway-release-server/internal/models"
)

// MemoryLocator keeps one in-process registry per gateway instance
type MemoryLocator struct {
	mu         sync.Mutex
	registries map[string]*KVRegistry
}

var _ Locator = (*MemoryLocator)(nil)

// NewMemoryLocator returns a locator creating registries on first use
func NewMemoryLocator() *MemoryLocator {
	return &MemoryLocator{registries: make(map[string]*KVRegistry)}
}

// For implements Locator
func (l *MemoryLocator) For(_ context.Context, target *models.MicroGateway) (Registry, error) {
	if target == nil || target.ID == "" {
		return nil, errors.New("target gateway instance is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	reg, ok := l.registries[target.ID]
	if !ok {
		reg = New(NewMemoryKV())
		l.registries[target.ID] = reg
	}
	return reg, nil
}
