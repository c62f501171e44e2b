// Package distributor delivers converted manifests to gateway instances.
//
// Two strategies are provided: RegistryDistributor synchronizes the instance
// registry directly, BundleDistributor renders a deployment bundle on disk.
// Both are idempotent for identical inputs, so callers may retry freely.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/otel"
	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_distributor.go -package=mocks -source=distributor.go Distributor

// Strategy names
const (
	StrategyRegistry = "registry"
	StrategyBundle   = "bundle"
)

// Operation names used in errors and metrics
const (
	OpDistribute = "distribute"
	OpRevoke     = "revoke"
)

// Release is the converted content of one (gateway, stage) for one instance
type Release struct {
	Gateway           string
	Stage             string
	ResourceVersionID int64
	Manifests         []*manifest.Object
}

// Scope identifies the manifests of one (gateway, stage)
type Scope struct {
	Gateway string
	Stage   string
}

// Scope returns the scope the release is delivered to
func (r *Release) Scope() Scope {
	return Scope{Gateway: r.Gateway, Stage: r.Stage}
}

// Distributor delivers or withdraws the manifests of a gateway stage on one instance.
// attemptID identifies the try for logging only and never changes the outcome.
type Distributor interface {
	Distribute(ctx context.Context, rel *Release, target *models.MicroGateway, attemptID string) error
	Revoke(ctx context.Context, scope Scope, target *models.MicroGateway, attemptID string) error
}

// DistributionError wraps a failed delivery. It is retryable unless Err is a
// *backoff.PermanentError, which marks failures that no retry can fix.
type DistributionError struct {
	Op     string
	Target string
	Err    error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("%s to %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *DistributionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether delivering again may succeed
func (e *DistributionError) Retryable() bool {
	var permanent *backoff.PermanentError
	return !errors.As(e.Err, &permanent)
}

// Option configures a distributor
type Option func(*instrumentation)

// WithMetrics records call durations on m
func WithMetrics(m *telemetry.DistributeMetrics) Option {
	return func(i *instrumentation) {
		i.metrics = m
	}
}

// WithTracer starts a span per call on tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(i *instrumentation) {
		i.tracer = tracer
	}
}

type instrumentation struct {
	strategy string
	metrics  *telemetry.DistributeMetrics
	tracer   trace.Tracer
}

func newInstrumentation(strategy string, opts []Option) instrumentation {
	i := instrumentation{strategy: strategy}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// observe runs fn inside a span and records its duration. Failures are
// returned as *DistributionError.
func (i instrumentation) observe(
	ctx context.Context,
	op string,
	scope Scope,
	target *models.MicroGateway,
	fn func(context.Context) error,
) error {
	ctx, span := otel.StartSpan(ctx, i.tracer, "distributor."+op,
		trace.WithAttributes(
			otel.AttrStrategy.String(i.strategy),
			otel.AttrTargetID.String(target.ID),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	i.metrics.RecordCall(ctx, i.strategy, op, time.Since(start), err == nil)

	if err != nil {
		otel.RecordError(span, err)
		return &DistributionError{Op: op, Target: target.ID + ":" + scope.Gateway + "/" + scope.Stage, Err: err}
	}
	return nil
}
