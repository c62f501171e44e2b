// Package events records the progress of release pipelines.
//
// Every publish or revoke creates a History. Each gateway instance targeted by
// the history gets its own chain of Events, appended strictly in pipeline
// order. The status of a history is derived from these chains by the status
// package; this package never interprets them beyond validating transitions.
package events

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=types.go Store

// Status is the outcome recorded by an event
type Status string

const (
	// StatusDoing marks a step in progress
	StatusDoing Status = "DOING"
	// StatusSuccess marks a finished step
	StatusSuccess Status = "SUCCESS"
	// StatusFailure marks a failed step. It ends the chain.
	StatusFailure Status = "FAILURE"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusDoing || s == StatusSuccess || s == StatusFailure
}

// Kind is the type of a release history
type Kind string

const (
	// KindPublish puts a resource version live on a stage
	KindPublish Kind = "publish"
	// KindRevoke withdraws a stage from its instances
	KindRevoke Kind = "revoke"
)

// Step is a pipeline step. Steps of one chain are strictly increasing.
type Step int

// Publish runs Build, Convert, Distribute, Finalize. Revoke runs Revoke, Finalize.
const (
	StepBuild      Step = 1
	StepConvert    Step = 2
	StepDistribute Step = 3
	StepRevoke     Step = 3
	StepFinalize   Step = 4
)

// Name returns the display name of the step within a history of the given kind
func (s Step) Name(kind Kind) string {
	switch s {
	case StepBuild:
		return "building"
	case StepConvert:
		return "converting"
	case StepDistribute:
		if kind == KindRevoke {
			return "revoking"
		}
		return "distributing"
	case StepFinalize:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known step
func (s Step) Valid() bool {
	return s >= StepBuild && s <= StepFinalize
}

// History is one publish or revoke of a gateway stage
type History struct {
	ID                int64     `json:"id"`
	Kind              Kind      `json:"kind"`
	GatewayID         int64     `json:"gatewayID"`
	StageID           int64     `json:"stageID"`
	ResourceVersionID int64     `json:"resourceVersionID,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Event is one entry of the chain of a history target
type Event struct {
	ID        int64  `json:"id"`
	HistoryID int64  `json:"historyID"`
	Target    string `json:"target"`
	Step      Step   `json:"step"`
	Status    Status `json:"status"`
	// IsLast marks the successful end of the chain
	IsLast    bool      `json:"isLast,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Terminal reports whether no event may follow e
func (e *Event) Terminal() bool {
	return e.Status == StatusFailure || (e.Status == StatusSuccess && e.IsLast)
}

var (
	// ErrHistoryNotFound is returned for unknown history IDs
	ErrHistoryNotFound = errors.New("release history not found")
	// ErrInvalidTransition is returned when an event would break pipeline order
	ErrInvalidTransition = errors.New("invalid event transition")
	// ErrChainFinalized is returned when appending to a finished chain
	ErrChainFinalized = errors.New("event chain already finalized")
)

// Store persists histories and their events
type Store interface {
	// CreateHistory stores h, assigning its ID and, when zero, its creation time
	CreateHistory(ctx context.Context, h *History) (*History, error)
	GetHistory(ctx context.Context, id int64) (*History, error)
	// ListHistories returns the histories of a gateway stage, newest first
	ListHistories(ctx context.Context, gatewayID, stageID int64) ([]*History, error)
	// AppendEvent validates e against the latest event of its chain and stores it
	AppendEvent(ctx context.Context, e *Event) (*Event, error)
	// ListEvents returns the events of a history in append order
	ListEvents(ctx context.Context, historyID int64) ([]*Event, error)
	// DeleteEventsBefore removes events created before cutoff and returns how many were removed.
	// The latest event of every target chain is kept.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
