package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

// ErrPoolClosed is returned by Submit after Shutdown started
var ErrPoolClosed = errors.New("worker pool is shut down")

// Pool runs tasks concurrently, at most workers at a time
type Pool struct {
	sem     *semaphore.Weighted
	metrics *telemetry.PublishMetrics

	// ctx outlives the callers of Submit; it is cancelled when Shutdown gives up waiting
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]int
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithPoolMetrics records the outcome and duration of every task
func WithPoolMetrics(m *telemetry.PublishMetrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a pool running up to workers tasks at once
func NewPool(workers int64, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		sem:     semaphore.NewWeighted(workers),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues task and returns its ID. The task counts as running from now
// until its last attempt returned. The logger of ctx is carried over; its
// cancellation is not.
func (p *Pool) Submit(ctx context.Context, task Task) (string, error) {
	if task.Run == nil {
		return "", fmt.Errorf("task %q has nothing to run", task.Name)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrPoolClosed
	}
	p.running[task.Key]++
	p.wg.Add(1)
	p.mu.Unlock()

	id := uuid.NewString()
	logger := logr.FromContextOrDiscard(ctx).WithValues("task", task.Name, "taskID", id, "key", task.Key)
	taskCtx := logr.NewContext(p.ctx, logger)

	go func() {
		defer p.wg.Done()
		defer p.release(task.Key)
		p.run(taskCtx, task)
	}()

	return id, nil
}

func (p *Pool) run(ctx context.Context, task Task) {
	logger := logr.FromContextOrDiscard(ctx)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		logger.Info("Task dropped before it started", "reason", err.Error())
		p.fail(ctx, task, err)
		return
	}
	defer p.sem.Release(1)

	start := time.Now()
	err := task.Retry.Do(ctx, task.Name, func(ctx context.Context, attempt uint) error {
		return runAttempt(ctx, task, attempt)
	})
	p.metrics.RecordRun(ctx, task.Name, time.Since(start), err == nil)

	if err != nil {
		logger.Error(err, "Task failed")
		p.fail(ctx, task, err)
		return
	}
	logger.V(1).Info("Task finished", "elapsed", time.Since(start).String())
}

// fail runs the failure hook on a context that is not cancelled, so the
// outcome can still be recorded during shutdown
func (p *Pool) fail(ctx context.Context, task Task, err error) {
	if task.OnFailure == nil {
		return
	}
	hookCtx := context.WithoutCancel(ctx)
	func() {
		defer func() {
			if r := recover(); r != nil {
				logr.FromContextOrDiscard(ctx).Error(fmt.Errorf("panic: %v", r), "Task failure hook panicked")
			}
		}()
		task.OnFailure(hookCtx, err)
	}()
}

func runAttempt(ctx context.Context, task Task, attempt uint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logr.FromContextOrDiscard(ctx).Error(fmt.Errorf("panic: %v", r), "Task attempt panicked",
				"attempt", attempt, "stack", string(debug.Stack()))
			err = backoff.Permanent(fmt.Errorf("task %s panicked: %v", task.Name, r))
		}
	}()
	return task.Run(ctx, attempt)
}

func (p *Pool) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running[key]--
	if p.running[key] <= 0 {
		delete(p.running, key)
	}
}

// IsRunning reports whether a task with the given key is queued or executing
func (p *Pool) IsRunning(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running[key] > 0
}

// Closed reports whether Shutdown was called
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Wait blocks until every submitted task returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting tasks and waits for the submitted ones. When ctx
// ends first, running tasks are cancelled and ctx's error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
