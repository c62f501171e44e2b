package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

// retentionJitter is the largest fraction of the interval added or removed per tick
const retentionJitter = 0.1

// RetentionLoop periodically deletes events older than the retention window
type RetentionLoop struct {
	store    events.Store
	window   time.Duration
	interval time.Duration
	clock    clock.Clock
	metrics  *telemetry.RetentionMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RetentionOption configures a RetentionLoop
type RetentionOption func(*RetentionLoop)

// WithRetentionClock sets the clock the loop schedules and computes cutoffs with
func WithRetentionClock(c clock.Clock) RetentionOption {
	return func(r *RetentionLoop) {
		r.clock = c
	}
}

// WithRetentionMetrics counts deleted events on m
func WithRetentionMetrics(m *telemetry.RetentionMetrics) RetentionOption {
	return func(r *RetentionLoop) {
		r.metrics = m
	}
}

// NewRetentionLoop creates a loop deleting events older than window every interval
func NewRetentionLoop(store events.Store, window, interval time.Duration, opts ...RetentionOption) *RetentionLoop {
	r := &RetentionLoop{
		store:    store,
		window:   window,
		interval: interval,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce deletes the expired events and returns how many were removed
func (r *RetentionLoop) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.window)
	deleted, err := r.store.DeleteEventsBefore(ctx, cutoff)
	r.metrics.RecordDeleted(ctx, deleted)
	if err != nil {
		return deleted, fmt.Errorf("failed to delete events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	logr.FromContextOrDiscard(ctx).Info("Deleted expired publish events",
		"deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	return deleted, nil
}

// nextInterval returns the interval with a random jitter applied
func (r *RetentionLoop) nextInterval() time.Duration {
	spread := int64(float64(r.interval) * retentionJitter)
	if spread <= 0 {
		return r.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	return r.interval + time.Duration(rand.Int64N(2*spread)-spread)
}

// Start runs a pass immediately and then once per interval. It blocks until
// ctx is cancelled or Stop is called.
func (r *RetentionLoop) Start(ctx context.Context) error {
	logger := logr.FromContextOrDiscard(ctx)

	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return fmt.Errorf("retention loop already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		logger.Info("Retention loop stopped")
	}()

	logger.Info("Starting retention loop", "window", r.window.String(), "interval", r.interval.String())

	for {
		if _, err := r.RunOnce(loopCtx); err != nil && loopCtx.Err() == nil {
			logger.Error(err, "Retention pass failed")
		}

		select {
		case <-r.clock.After(r.nextInterval()):
		case <-loopCtx.Done():
			return nil
		}
	}
}

// Stop cancels a started loop and waits for it to return
func (r *RetentionLoop) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
