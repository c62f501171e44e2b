package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/stacklok/gateway-release-server/internal/events"
)

// FileFactory keeps events as JSON documents in a local directory.
// Only one process may use a directory at a time.
type FileFactory struct {
	dir   string
	store *events.FileStore
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory opens the file event store rooted at dir
func NewFileFactory(dir string) (*FileFactory, error) {
	slog.Info("Creating file-based event storage", "dir", dir)

	store, err := events.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open file event store: %w", err)
	}
	return &FileFactory{dir: dir, store: store}, nil
}

// CreateEventStore implements Factory
func (f *FileFactory) CreateEventStore(_ context.Context) (events.Store, error) {
	return f.store, nil
}

// CheckReadiness verifies the store directory is still there
func (f *FileFactory) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("event store directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("event store path %s is not a directory", f.dir)
	}
	return nil
}

// Cleanup implements Factory
func (*FileFactory) Cleanup() {}
