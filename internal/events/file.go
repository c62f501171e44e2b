package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	historyFilePrefix = "history-"
	historyFileSuffix = ".json"
)

// historyDocument is the on-disk form of one history and its events
type historyDocument struct {
	History *History `json:"history"`
	Events  []*Event `json:"events"`
}

// FileStore keeps one JSON document per history in a directory.
// It serves a single process; concurrent writers on the same directory are not supported.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	clock     clock.PassiveClock
	nextHist  int64
	nextEvent int64
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens the store rooted at dir, creating the directory when missing
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("event store directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create event store directory '%s': %w", dir, err)
	}

	o := buildOptions(opts)
	s := &FileStore{dir: dir, clock: o.clock}

	docs, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		s.nextHist = max(s.nextHist, doc.History.ID)
		for _, e := range doc.Events {
			s.nextEvent = max(s.nextEvent, e.ID)
		}
	}
	return s, nil
}

// CreateHistory implements Store
func (s *FileStore) CreateHistory(_ context.Context, h *History) (*History, error) {
	if err := validateHistory(h); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *h
	stored.ID = s.nextHist + 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock.Now()
	}
	if err := s.save(&historyDocument{History: &stored}); err != nil {
		return nil, err
	}
	s.nextHist = stored.ID

	out := stored
	return &out, nil
}

// GetHistory implements Store
func (s *FileStore) GetHistory(_ context.Context, id int64) (*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return doc.History, nil
}

// ListHistories implements Store
func (s *FileStore) ListHistories(_ context.Context, gatewayID, stageID int64) ([]*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	var out []*History
	for _, doc := range docs {
		if doc.History.GatewayID == gatewayID && doc.History.StageID == stageID {
			out = append(out, doc.History)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// AppendEvent implements Store
func (s *FileStore) AppendEvent(_ context.Context, e *Event) (*Event, error) {
	if e.Target == "" {
		return nil, fmt.Errorf("%w: event target is required", ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(e.HistoryID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(latestOf(doc.Events, e.Target), e); err != nil {
		return nil, err
	}

	stored := *e
	stored.ID = s.nextEvent + 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock.Now()
	}
	doc.Events = append(doc.Events, &stored)
	if err := s.save(doc); err != nil {
		return nil, err
	}
	s.nextEvent = stored.ID

	out := stored
	return &out, nil
}

// ListEvents implements Store
func (s *FileStore) ListEvents(_ context.Context, historyID int64) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(historyID)
	if err != nil {
		return nil, err
	}
	if doc.Events == nil {
		return []*Event{}, nil
	}
	return doc.Events, nil
}

// DeleteEventsBefore implements Store
func (s *FileStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadAll()
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		kept := PruneBefore(doc.Events, cutoff)
		if len(kept) == len(doc.Events) {
			continue
		}
		removed := int64(len(doc.Events) - len(kept))
		doc.Events = kept
		if err := s.save(doc); err != nil {
			return deleted, err
		}
		deleted += removed
	}
	return deleted, nil
}

func (s *FileStore) path(id int64) string {
	return filepath.Join(s.dir, historyFilePrefix+strconv.FormatInt(id, 10)+historyFileSuffix)
}

func (s *FileStore) save(doc *historyDocument) error {
	id := doc.History.ID
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history %d: %w", id, err)
	}

	filePath := s.path(id)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for history %d: %w", id, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file for history %d: %w", id, err)
	}
	return nil
}

func (s *FileStore) load(id int64) (*historyDocument, error) {
	// #nosec G304 -- path is built from the store directory and a numeric ID
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history %d: %w", id, ErrHistoryNotFound)
		}
		return nil, fmt.Errorf("failed to read history %d: %w", id, err)
	}
	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history %d: %w", id, err)
	}
	if doc.History == nil {
		return nil, fmt.Errorf("history file %d has no history", id)
	}
	return &doc, nil
}

func (s *FileStore) loadAll() ([]*historyDocument, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read event store directory: %w", err)
	}

	var docs []*historyDocument
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, historyFilePrefix) || !strings.HasSuffix(name, historyFileSuffix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, historyFilePrefix), historyFileSuffix), 10, 64)
		if err != nil {
			continue
		}
		doc, err := s.load(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
