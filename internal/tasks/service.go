package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gateway-release-server/internal/distributor"
	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
	"github.com/stacklok/gateway-release-server/internal/sources"
	"github.com/stacklok/gateway-release-server/internal/versions"
)

const defaultTargetConcurrency = 4

// Converter turns release data into the manifests of one target
type Converter interface {
	Convert(ctx context.Context, data *releasedata.ReleaseData, target *models.MicroGateway) ([]*manifest.Object, error)
}

// PublishRequest asks for a resource version to go live on a stage
type PublishRequest struct {
	GatewayID         int64    `json:"gatewayID"`
	StageID           int64    `json:"stageID"`
	ResourceVersionID int64    `json:"resourceVersionID"`
	Targets           []string `json:"targets"`
}

// RevokeRequest asks for a stage to be withdrawn from its instances
type RevokeRequest struct {
	GatewayID int64    `json:"gatewayID"`
	StageID   int64    `json:"stageID"`
	Targets   []string `json:"targets"`
}

// Service starts publish and revoke pipelines
type Service struct {
	source      sources.Source
	builder     *releasedata.Builder
	converter   Converter
	distributor distributor.Distributor
	store       events.Store
	pool        *Pool

	retry       RetryPolicy
	concurrency int
	tracer      trace.Tracer
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithRetryPolicy sets the retry policy of pipeline tasks
func WithRetryPolicy(p RetryPolicy) ServiceOption {
	return func(s *Service) {
		s.retry = p
	}
}

// WithTargetConcurrency bounds how many targets one attempt processes at once
func WithTargetConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTracer starts spans for pipelines and target chains
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a service
func NewService(
	source sources.Source,
	converter Converter,
	dist distributor.Distributor,
	store events.Store,
	pool *Pool,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		source:      source,
		builder:     releasedata.NewBuilder(source),
		converter:   converter,
		distributor: dist,
		store:       store,
		pool:        pool,
		retry:       DefaultRetryPolicy(),
		concurrency: defaultTargetConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish records a new history, builds the release data and queues the
// pipeline. Input errors are returned here after every target chain was failed.
// Any other build error leaves the build step open for the pipeline to retry.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*events.History, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues(
		"gatewayID", req.GatewayID, "stageID", req.StageID, "resourceVersionID", req.ResourceVersionID)
	ctx = logr.NewContext(ctx, logger)

	if req.ResourceVersionID <= 0 {
		return nil, &releasedata.InputError{Field: "resourceVersionID", Reason: "must be positive"}
	}
	targets, err := s.resolveTargets(ctx, req.GatewayID, req.StageID, req.Targets)
	if err != nil {
		return nil, err
	}

	h, err := s.store.CreateHistory(ctx, &events.History{
		Kind:              events.KindPublish,
		GatewayID:         req.GatewayID,
		StageID:           req.StageID,
		ResourceVersionID: req.ResourceVersionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release history: %w", err)
	}
	logger = logger.WithValues("historyID", h.ID)
	ctx = logr.NewContext(ctx, logger)

	data, err := s.build(ctx, h, targets)
	if err != nil {
		return h, err
	}

	if data != nil {
		s.noteRollback(ctx, h, data)
	}

	p := &pipeline{service: s, history: h, targets: targets, data: data}
	if _, err := s.pool.Submit(ctx, p.task()); err != nil {
		s.failChains(ctx, h, targets, err)
		return h, fmt.Errorf("failed to queue publish of history %d: %w", h.ID, err)
	}
	logger.Info("Publish queued", "targets", len(targets))
	return h, nil
}

// Revoke records a new history and queues the pipeline withdrawing the stage
func (s *Service) Revoke(ctx context.Context, req RevokeRequest) (*events.History, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("gatewayID", req.GatewayID, "stageID", req.StageID)
	ctx = logr.NewContext(ctx, logger)

	targets, err := s.resolveTargets(ctx, req.GatewayID, req.StageID, req.Targets)
	if err != nil {
		return nil, err
	}
	gw, err := s.source.GetGateway(ctx, req.GatewayID)
	if err != nil {
		return nil, sourceErr("gatewayID", err)
	}
	stage, err := s.source.GetStage(ctx, req.GatewayID, req.StageID)
	if err != nil {
		return nil, sourceErr("stageID", err)
	}

	h, err := s.store.CreateHistory(ctx, &events.History{
		Kind:      events.KindRevoke,
		GatewayID: req.GatewayID,
		StageID:   req.StageID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release history: %w", err)
	}
	logger = logger.WithValues("historyID", h.ID)
	ctx = logr.NewContext(ctx, logger)

	p := &pipeline{
		service: s,
		history: h,
		targets: targets,
		scope:   distributor.Scope{Gateway: gw.Name, Stage: stage.Name},
	}
	if _, err := s.pool.Submit(ctx, p.task()); err != nil {
		s.failChains(ctx, h, targets, err)
		return h, fmt.Errorf("failed to queue revoke of history %d: %w", h.ID, err)
	}
	logger.Info("Revoke queued", "targets", len(targets))
	return h, nil
}

// build runs the build step of every target chain. A nil result without an
// error means the build hit a transient failure and stays DOING.
func (s *Service) build(
	ctx context.Context,
	h *events.History,
	targets []*models.MicroGateway,
) (*releasedata.ReleaseData, error) {
	logger := logr.FromContextOrDiscard(ctx)

	for _, t := range targets {
		if err := s.append(ctx, h, t.ID, events.StepBuild, events.StatusDoing, ""); err != nil {
			return nil, err
		}
	}

	data, buildErr := s.builder.Build(ctx, releaseOf(h))
	if buildErr != nil && !releasedata.IsInputError(buildErr) {
		logger.Info("Release data build failed, deferring to the pipeline", "error", buildErr.Error())
		return nil, nil
	}
	if buildErr != nil {
		logger.Info("Release data rejected", "error", buildErr.Error())
		var recordErrs []error
		for _, t := range targets {
			recordErrs = append(recordErrs, s.append(ctx, h, t.ID, events.StepBuild, events.StatusFailure, buildErr.Error()))
		}
		if err := errors.Join(recordErrs...); err != nil {
			return nil, errors.Join(buildErr, err)
		}
		return nil, buildErr
	}

	if err := s.finishBuild(ctx, h, targets, nil); err != nil {
		return nil, err
	}
	return data, nil
}

// finishBuild records the build SUCCESS of every chain still building
func (s *Service) finishBuild(
	ctx context.Context,
	h *events.History,
	targets []*models.MicroGateway,
	latest map[string]*events.Event,
) error {
	for _, t := range targets {
		last := latest[t.ID]
		if last != nil && (last.Step != events.StepBuild || last.Status != events.StatusDoing) {
			continue
		}
		if err := s.append(ctx, h, t.ID, events.StepBuild, events.StatusSuccess, ""); err != nil {
			return err
		}
	}
	return nil
}

func releaseOf(h *events.History) models.Release {
	return models.Release{
		GatewayID:         h.GatewayID,
		StageID:           h.StageID,
		ResourceVersionID: h.ResourceVersionID,
	}
}

// noteRollback logs when the stage goes back to an older resource version
func (s *Service) noteRollback(ctx context.Context, h *events.History, data *releasedata.ReleaseData) {
	logger := logr.FromContextOrDiscard(ctx)

	list, err := s.store.ListHistories(ctx, h.GatewayID, h.StageID)
	if err != nil {
		logger.V(1).Info("Skipping rollback check", "error", err.Error())
		return
	}
	for _, prev := range list {
		if prev.ID == h.ID || prev.Kind != events.KindPublish {
			continue
		}
		rv, err := s.source.GetResourceVersion(ctx, h.GatewayID, prev.ResourceVersionID)
		if err != nil {
			return
		}
		if versions.IsNewerVersion(rv.Version, data.ResourceVersion.Version) {
			logger.Info("Publishing an older resource version",
				"version", data.ResourceVersion.Version, "previousVersion", rv.Version, "previousHistoryID", prev.ID)
		}
		return
	}
}

// resolveTargets checks the request and loads its instances in request order
func (s *Service) resolveTargets(
	ctx context.Context,
	gatewayID, stageID int64,
	ids []string,
) ([]*models.MicroGateway, error) {
	if gatewayID <= 0 {
		return nil, &releasedata.InputError{Field: "gatewayID", Reason: "must be positive"}
	}
	if stageID <= 0 {
		return nil, &releasedata.InputError{Field: "stageID", Reason: "must be positive"}
	}
	if len(ids) == 0 {
		return nil, &releasedata.InputError{Field: "targets", Reason: "at least one target is required"}
	}

	out := make([]*models.MicroGateway, 0, len(ids))
	for i, id := range ids {
		field := fmt.Sprintf("targets[%d]", i)
		if id == "" {
			return nil, &releasedata.InputError{Field: field, Reason: "empty target ID"}
		}
		if slices.Index(ids, id) != i {
			return nil, &releasedata.InputError{Field: field, Reason: "duplicate target " + id}
		}
		target, err := s.source.GetMicroGateway(ctx, id)
		if err != nil {
			return nil, sourceErr(field, err)
		}
		if target.GatewayID != gatewayID {
			return nil, &releasedata.InputError{
				Field:  field,
				Reason: fmt.Sprintf("instance %s belongs to gateway %d", id, target.GatewayID),
			}
		}
		out = append(out, target)
	}
	return out, nil
}

func (s *Service) append(
	ctx context.Context,
	h *events.History,
	target string,
	step events.Step,
	st events.Status,
	detail string,
) error {
	_, err := s.store.AppendEvent(ctx, &events.Event{
		HistoryID: h.ID,
		Target:    target,
		Step:      step,
		Status:    st,
		IsLast:    step == events.StepFinalize && st == events.StatusSuccess,
		Detail:    detail,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s %s of %s: %w", step.Name(h.Kind), st, target, err)
	}
	return nil
}

// failChains appends a FAILURE to every chain of h that is still open
func (s *Service) failChains(ctx context.Context, h *events.History, targets []*models.MicroGateway, cause error) {
	logger := logr.FromContextOrDiscard(ctx)

	list, err := s.store.ListEvents(ctx, h.ID)
	if err != nil {
		logger.Error(err, "Failed to read events to record failure")
		return
	}
	latest := events.LatestByTarget(list)

	for _, t := range targets {
		last := latest[t.ID]
		if last != nil && last.Terminal() {
			continue
		}
		step := firstStep(h.Kind)
		if last != nil {
			step = last.Step
			if last.Status == events.StatusSuccess {
				step++
			}
		}
		if err := s.append(ctx, h, t.ID, step, events.StatusFailure, cause.Error()); err != nil {
			logger.Error(err, "Failed to record failure", "target", t.ID)
		}
	}
}

func firstStep(kind events.Kind) events.Step {
	if kind == events.KindRevoke {
		return events.StepRevoke
	}
	return events.StepBuild
}

func sourceErr(field string, err error) error {
	if errors.Is(err, sources.ErrNotFound) {
		return &releasedata.InputError{Field: field, Reason: "not found", Err: err}
	}
	return fmt.Errorf("failed to read %s: %w", field, err)
}
