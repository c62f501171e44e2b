package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/gateway-release-server/internal/api"
	"github.com/stacklok/gateway-release-server/internal/app/storage"
	"github.com/stacklok/gateway-release-server/internal/convertor"
	"github.com/stacklok/gateway-release-server/internal/distributor"
	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/sources"
	"github.com/stacklok/gateway-release-server/internal/status"
	"github.com/stacklok/gateway-release-server/internal/tasks"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Storage owns the event store and its backing resources
	Storage storage.Factory

	// Events is the publish event log
	Events events.Store

	// Source provides gateway configuration snapshots
	Source sources.Source

	// Converter turns release data into manifests
	Converter *convertor.Orchestrator

	// Distributor delivers manifests to gateway instances
	Distributor distributor.Distributor

	// Pool runs publish and revoke pipelines
	Pool *tasks.Pool

	// Releases starts publish and revoke pipelines
	Releases *tasks.Service

	// Status evaluates release histories
	Status *status.Engine

	// Retention deletes expired publish events
	Retention *tasks.RetentionLoop
}

// Close stops the retention loop, waits for queued pipelines until ctx ends
// and releases storage.
func (c *AppComponents) Close(ctx context.Context) error {
	c.Retention.Stop()

	var err error
	if shutdownErr := c.Pool.Shutdown(ctx); shutdownErr != nil {
		err = fmt.Errorf("pipelines cancelled on shutdown: %w", shutdownErr)
	}
	c.Storage.Cleanup()
	return err
}

var _ api.Service = (*releaseStatusService)(nil)

// releaseStatusService is the read side served over HTTP
type releaseStatusService struct {
	components *AppComponents
}

func (s *releaseStatusService) CheckReadiness(ctx context.Context) error {
	if s.components.Pool.Closed() {
		return errors.New("worker pool is shut down")
	}
	return s.components.Storage.CheckReadiness(ctx)
}

func (s *releaseStatusService) HistoryStatus(ctx context.Context, historyID int64) (*status.Report, error) {
	return s.components.Status.HistoryStatus(ctx, historyID)
}

func (s *releaseStatusService) ListHistories(ctx context.Context, gatewayID, stageID int64) ([]*events.History, error) {
	return s.components.Events.ListHistories(ctx, gatewayID, stageID)
}
