package events

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Option configures a store
type Option func(*options)

type options struct {
	clock clock.PassiveClock
}

// WithClock sets the clock used to stamp histories and events created without a time
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MemoryStore keeps histories and events in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	clock     clock.PassiveClock
	histories map[int64]*History
	events    map[int64][]*Event
	nextHist  int64
	nextEvent int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		clock:     o.clock,
		histories: make(map[int64]*History),
		events:    make(map[int64][]*Event),
	}
}

// CreateHistory implements Store
func (s *MemoryStore) CreateHistory(_ context.Context, h *History) (*History, error) {
	if err := validateHistory(h); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHist++
	stored := *h
	stored.ID = s.nextHist
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock.Now()
	}
	s.histories[stored.ID] = &stored

	out := stored
	return &out, nil
}

// GetHistory implements Store
func (s *MemoryStore) GetHistory(_ context.Context, id int64) (*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories[id]
	if !ok {
		return nil, fmt.Errorf("history %d: %w", id, ErrHistoryNotFound)
	}
	out := *h
	return &out, nil
}

// ListHistories implements Store
func (s *MemoryStore) ListHistories(_ context.Context, gatewayID, stageID int64) ([]*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*History
	for _, h := range s.histories {
		if h.GatewayID == gatewayID && h.StageID == stageID {
			c := *h
			out = append(out, &c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// AppendEvent implements Store
func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) (*Event, error) {
	if e.Target == "" {
		return nil, fmt.Errorf("%w: event target is required", ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.histories[e.HistoryID]; !ok {
		return nil, fmt.Errorf("history %d: %w", e.HistoryID, ErrHistoryNotFound)
	}
	chain := s.events[e.HistoryID]
	if err := ValidateTransition(latestOf(chain, e.Target), e); err != nil {
		return nil, err
	}

	s.nextEvent++
	stored := *e
	stored.ID = s.nextEvent
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock.Now()
	}
	s.events[e.HistoryID] = append(chain, &stored)

	out := stored
	return &out, nil
}

// ListEvents implements Store
func (s *MemoryStore) ListEvents(_ context.Context, historyID int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.histories[historyID]; !ok {
		return nil, fmt.Errorf("history %d: %w", historyID, ErrHistoryNotFound)
	}
	chain := s.events[historyID]
	out := make([]*Event, 0, len(chain))
	for _, e := range chain {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// DeleteEventsBefore implements Store
func (s *MemoryStore) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, chain := range s.events {
		kept := PruneBefore(chain, cutoff)
		deleted += int64(len(chain) - len(kept))
		s.events[id] = kept
	}
	return deleted, nil
}

func validateHistory(h *History) error {
	if h == nil {
		return fmt.Errorf("history is nil")
	}
	if h.Kind != KindPublish && h.Kind != KindRevoke {
		return fmt.Errorf("unknown history kind %q", h.Kind)
	}
	if h.GatewayID <= 0 || h.StageID <= 0 {
		return fmt.Errorf("history requires gateway and stage IDs")
	}
	return nil
}

func sortNewestFirst(hs []*History) {
	slices.SortFunc(hs, func(a, b *History) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
