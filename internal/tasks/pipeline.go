package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/gateway-release-server/internal/distributor"
	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/otel"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
	"github.com/stacklok/gateway-release-server/internal/status"
)

// pipeline carries one history through the steps after the build, and
// through the build itself when Publish could not complete it
type pipeline struct {
	service *Service
	history *events.History
	targets []*models.MicroGateway

	// publish only
	data *releasedata.ReleaseData
	// revoke only
	scope distributor.Scope
}

type stepAction struct {
	step events.Step
	run  func(ctx context.Context) error
}

func (p *pipeline) task() Task {
	return Task{
		Name:  string(p.history.Kind),
		Key:   status.TaskKey(p.history.ID),
		Run:   p.run,
		Retry: p.service.retry,
		OnFailure: func(ctx context.Context, err error) {
			p.service.failChains(ctx, p.history, p.targets, err)
		},
	}
}

// run is one attempt. Chains that already ended are skipped; the others
// continue from their latest event.
func (p *pipeline) run(ctx context.Context, attempt uint) error {
	s := p.service
	h := p.history
	attemptID := uuid.NewString()

	logger := logr.FromContextOrDiscard(ctx).WithValues("historyID", h.ID, "attempt", attempt, "attemptID", attemptID)
	ctx = logr.NewContext(ctx, logger)

	ctx, span := otel.StartSpan(ctx, s.tracer, "tasks."+string(h.Kind),
		trace.WithAttributes(otel.ReleaseAttrs(h.GatewayID, h.StageID)...),
		trace.WithAttributes(otel.AttrHistoryID.Int64(h.ID)),
	)
	defer span.End()

	list, err := s.store.ListEvents(ctx, h.ID)
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to read events of history %d: %w", h.ID, err)
	}
	latest := events.LatestByTarget(list)

	if h.Kind == events.KindPublish && p.data == nil {
		if latest, err = p.rebuild(ctx, latest); err != nil {
			otel.RecordError(span, err)
			return err
		}
	}

	var (
		mu     sync.Mutex
		errs   []error
		failed []string
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, t := range p.targets {
		last := latest[t.ID]
		if last != nil && last.Terminal() {
			if last.Status == events.StatusFailure {
				failed = append(failed, t.ID)
			}
			continue
		}
		g.Go(func() error {
			if err := p.runTarget(ctx, t, last, attemptID); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	err = errors.Join(errs...)
	if err == nil && len(failed) > 0 {
		err = backoff.Permanent(fmt.Errorf("targets %s failed in an earlier attempt", strings.Join(failed, ", ")))
	}
	if err != nil {
		otel.RecordError(span, err)
		return err
	}
	logger.Info("Pipeline finished", "targets", len(p.targets))
	return nil
}

// rebuild retries a build that Publish left open and returns the refreshed latest events
func (p *pipeline) rebuild(ctx context.Context, latest map[string]*events.Event) (map[string]*events.Event, error) {
	s := p.service
	h := p.history

	data, err := s.builder.Build(ctx, releaseOf(h))
	if err != nil {
		return nil, fmt.Errorf("failed to build release data: %w", err)
	}
	if err := s.finishBuild(ctx, h, p.targets, latest); err != nil {
		return nil, err
	}
	p.data = data
	s.noteRollback(ctx, h, data)

	list, err := s.store.ListEvents(ctx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events of history %d: %w", h.ID, err)
	}
	return events.LatestByTarget(list), nil
}

func (p *pipeline) runTarget(ctx context.Context, target *models.MicroGateway, last *events.Event, attemptID string) error {
	s := p.service
	h := p.history
	logger := logr.FromContextOrDiscard(ctx).WithValues("target", target.ID)
	ctx = logr.NewContext(ctx, logger)

	ctx, span := otel.StartSpan(ctx, s.tracer, "tasks.target",
		trace.WithAttributes(otel.AttrTargetID.String(target.ID)),
	)
	defer span.End()

	for _, action := range p.actions(target, attemptID) {
		if last != nil && (action.step < last.Step || (action.step == last.Step && last.Status == events.StatusSuccess)) {
			continue
		}
		resumed := last != nil && last.Step == action.step && last.Status == events.StatusDoing

		if action.run != nil {
			if !resumed {
				if err := s.append(ctx, h, target.ID, action.step, events.StatusDoing, ""); err != nil {
					return err
				}
			}
			if err := action.run(ctx); err != nil {
				otel.RecordError(span, err)
				if IsPermanent(err) {
					if appendErr := s.append(ctx, h, target.ID, action.step, events.StatusFailure, err.Error()); appendErr != nil {
						logger.Error(appendErr, "Failed to record step failure")
					}
				}
				logger.Info("Step failed", "step", action.step.Name(h.Kind), "error", err.Error())
				return fmt.Errorf("target %s: %s: %w", target.ID, action.step.Name(h.Kind), err)
			}
		}

		if err := s.append(ctx, h, target.ID, action.step, events.StatusSuccess, ""); err != nil {
			return err
		}
		logger.V(1).Info("Step done", "step", action.step.Name(h.Kind))
	}
	return nil
}

// actions lists the steps after the build for the history kind
func (p *pipeline) actions(target *models.MicroGateway, attemptID string) []stepAction {
	s := p.service

	if p.history.Kind == events.KindRevoke {
		return []stepAction{
			{step: events.StepRevoke, run: func(ctx context.Context) error {
				return s.distributor.Revoke(ctx, p.scope, target, attemptID)
			}},
			{step: events.StepFinalize},
		}
	}

	// Conversion is pure, so a resumed distribute converts again
	var manifests []*manifest.Object
	convert := func(ctx context.Context) error {
		objs, err := s.converter.Convert(ctx, p.data, target)
		if err != nil {
			return err
		}
		manifests = objs
		return nil
	}

	return []stepAction{
		{step: events.StepConvert, run: convert},
		{step: events.StepDistribute, run: func(ctx context.Context) error {
			if manifests == nil {
				if err := convert(ctx); err != nil {
					return err
				}
			}
			return s.distributor.Distribute(ctx, &distributor.Release{
				Gateway:           p.data.Gateway.Name,
				Stage:             p.data.Stage.Name,
				ResourceVersionID: p.data.ResourceVersion.ID,
				Manifests:         manifests,
			}, target, attemptID)
		}},
		{step: events.StepFinalize},
	}
}
