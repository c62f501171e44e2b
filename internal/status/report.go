package status

import (
	"time"

	"github.com/stacklok/gateway-release-server/internal/events"
)

// Report is the derived state of one release history
type Report struct {
	HistoryID         int64         `json:"historyID"`
	Kind              events.Kind   `json:"kind"`
	GatewayID         int64         `json:"gatewayID"`
	StageID           int64         `json:"stageID"`
	ResourceVersionID int64         `json:"resourceVersionID,omitempty"`
	Status            events.Status `json:"status"`
	// Reason is set when Status is a FAILURE derived from staleness
	Reason      string         `json:"reason,omitempty"`
	Running     bool           `json:"running"`
	Targets     []TargetReport `json:"targets,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	EvaluatedAt time.Time      `json:"evaluatedAt"`
}

// TargetReport is the derived state of one target chain
type TargetReport struct {
	Target    string        `json:"target"`
	Status    events.Status `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Step      events.Step   `json:"step"`
	StepName  string        `json:"stepName"`
	Detail    string        `json:"detail,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Finished reports whether the history reached SUCCESS or FAILURE
func (r *Report) Finished() bool {
	return r.Status == events.StatusSuccess || r.Status == events.StatusFailure
}
