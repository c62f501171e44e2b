package events

import (
	"fmt"
	"slices"
	"time"
)

// ValidateTransition checks that next may follow latest in one chain.
// latest is nil for the first event of a chain, which may start at any step.
func ValidateTransition(latest, next *Event) error {
	if !next.Step.Valid() {
		return fmt.Errorf("%w: unknown step %d", ErrInvalidTransition, next.Step)
	}
	if !next.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	}
	if next.IsLast && next.Status != StatusSuccess {
		return fmt.Errorf("%w: only a successful event can end a chain", ErrInvalidTransition)
	}
	if next.IsLast && next.Step != StepFinalize {
		return fmt.Errorf("%w: only step %d can end a chain", ErrInvalidTransition, StepFinalize)
	}
	if latest == nil {
		return nil
	}

	if latest.Terminal() {
		return fmt.Errorf("%w: target %s ended with %s", ErrChainFinalized, latest.Target, latest.Status)
	}

	switch latest.Status {
	case StatusDoing:
		if next.Step != latest.Step || next.Status == StatusDoing {
			return fmt.Errorf("%w: step %d in progress, got %s of step %d",
				ErrInvalidTransition, latest.Step, next.Status, next.Step)
		}
	case StatusSuccess:
		if next.Step != latest.Step+1 {
			return fmt.Errorf("%w: step %d done, got step %d", ErrInvalidTransition, latest.Step, next.Step)
		}
	}
	return nil
}

// LatestByTarget returns the most recent event of every target.
// events must be in append order.
func LatestByTarget(events []*Event) map[string]*Event {
	out := make(map[string]*Event)
	for _, e := range events {
		out[e.Target] = e
	}
	return out
}

// Targets returns the distinct targets of events in first-seen order
func Targets(events []*Event) []string {
	var out []string
	for _, e := range events {
		if !slices.Contains(out, e.Target) {
			out = append(out, e.Target)
		}
	}
	return out
}

func latestOf(events []*Event, target string) *Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Target == target {
			return events[i]
		}
	}
	return nil
}

// PruneBefore drops events created before cutoff from one history's events.
// The latest event of every target chain is always kept so the outcome of the
// chain stays derivable.
func PruneBefore(events []*Event, cutoff time.Time) []*Event {
	latest := LatestByTarget(events)
	kept := make([]*Event, 0, len(events))
	for _, e := range events {
		if !e.CreatedAt.Before(cutoff) || latest[e.Target] == e {
			kept = append(kept, e)
		}
	}
	return kept
}
