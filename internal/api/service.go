package api

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

import (
	"context"

	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/status"
)

// Service is the read side the HTTP surface needs
type Service interface {
	// CheckReadiness reports whether the server can accept work
	CheckReadiness(ctx context.Context) error
	// HistoryStatus evaluates the status of one release history
	HistoryStatus(ctx context.Context, historyID int64) (*status.Report, error)
	// ListHistories returns the histories of a gateway stage, newest first
	ListHistories(ctx context.Context, gatewayID, stageID int64) ([]*events.History, error)
}
