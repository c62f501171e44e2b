// Package status derives the state of release histories from their event chains.
//
// Staleness is never written back to the event log: an abandoned or stalled
// chain reads as FAILURE only in the computed report.
package status

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"k8s.io/utils/clock"

	"github.com/stacklok/gateway-release-server/internal/events"
)

const (
	// DefaultDoingTimeout is how long a step may stay in progress before it is stalled
	DefaultDoingTimeout = 600 * time.Second
	// DefaultEventFailInterval is how long a non final success may wait for the next step
	DefaultEventFailInterval = 5 * time.Minute
)

// Reasons explain a derived FAILURE that no FAILURE event recorded
const (
	ReasonStalled   = "stalled"
	ReasonAbandoned = "abandoned"
)

// RunningChecker reports whether the work for a key is still executing
type RunningChecker interface {
	IsRunning(key string) bool
}

// TaskKey is the worker pool key of the task that owns a history
func TaskKey(historyID int64) string {
	return "history/" + strconv.FormatInt(historyID, 10)
}

// Engine evaluates event chains against the current time
type Engine struct {
	store             events.Store
	running           RunningChecker
	clock             clock.PassiveClock
	doingTimeout      time.Duration
	eventFailInterval time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock the engine measures staleness against
func WithClock(c clock.PassiveClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithDoingTimeout overrides DefaultDoingTimeout
func WithDoingTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.doingTimeout = d
		}
	}
}

// WithEventFailInterval overrides DefaultEventFailInterval
func WithEventFailInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.eventFailInterval = d
		}
	}
}

// NewEngine creates an engine reading from store. running may be nil when no tasks execute in process.
func NewEngine(store events.Store, running RunningChecker, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		running:           running,
		clock:             clock.RealClock{},
		doingTimeout:      DefaultDoingTimeout,
		eventFailInterval: DefaultEventFailInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EventStatus derives the status of a chain from its latest event.
// The rules apply in order; staleness wins over a running task.
func (e *Engine) EventStatus(latest *events.Event, running bool) events.Status {
	s, _ := e.evaluate(latest, running)
	return s
}

func (e *Engine) evaluate(latest *events.Event, running bool) (events.Status, string) {
	now := e.clock.Now()

	switch {
	case latest == nil:
		return events.StatusDoing, ""
	case latest.Status == events.StatusDoing && now.Sub(latest.CreatedAt) > e.doingTimeout:
		return events.StatusFailure, ReasonStalled
	case latest.Status == events.StatusSuccess && !latest.IsLast && now.Sub(latest.CreatedAt) > e.eventFailInterval:
		return events.StatusFailure, ReasonAbandoned
	case running:
		return events.StatusDoing, ""
	case latest.Status == events.StatusSuccess:
		return events.StatusSuccess, ""
	case latest.Status == events.StatusFailure:
		return events.StatusFailure, ""
	default:
		return events.StatusDoing, ""
	}
}

// HistoryStatus evaluates every target chain of a history and combines them into a report
func (e *Engine) HistoryStatus(ctx context.Context, historyID int64) (*Report, error) {
	h, err := e.store.GetHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}
	list, err := e.store.ListEvents(ctx, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events of history %d: %w", historyID, err)
	}

	running := e.running != nil && e.running.IsRunning(TaskKey(historyID))
	now := e.clock.Now()

	report := &Report{
		HistoryID:         h.ID,
		Kind:              h.Kind,
		GatewayID:         h.GatewayID,
		StageID:           h.StageID,
		ResourceVersionID: h.ResourceVersionID,
		CreatedAt:         h.CreatedAt,
		EvaluatedAt:       now,
		Running:           running,
	}

	if len(list) == 0 {
		report.Status = events.StatusDoing
		if now.Sub(h.CreatedAt) > e.doingTimeout {
			report.Status = events.StatusFailure
			report.Reason = ReasonStalled
		}
		return report, nil
	}

	latest := events.LatestByTarget(list)
	overall := events.StatusSuccess
	for _, target := range events.Targets(list) {
		ev := latest[target]
		s, reason := e.evaluate(ev, running)
		report.Targets = append(report.Targets, TargetReport{
			Target:    target,
			Status:    s,
			Reason:    reason,
			Step:      ev.Step,
			StepName:  ev.Step.Name(h.Kind),
			Detail:    ev.Detail,
			UpdatedAt: ev.CreatedAt,
		})
		if severity(s) > severity(overall) {
			overall = s
			report.Reason = reason
		}
	}
	report.Status = overall
	return report, nil
}

func severity(s events.Status) int {
	switch s {
	case events.StatusFailure:
		return 2
	case events.StatusDoing:
		return 1
	default:
		return 0
	}
}
