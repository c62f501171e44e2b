package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// PublishMeterName is the meter used by the publish pipeline
	PublishMeterName = "github.com/stacklok/gateway-release-server/publish"

	// DistributeMeterName is the meter used by distributors
	DistributeMeterName = "github.com/stacklok/gateway-release-server/distribute"

	// RetentionMeterName is the meter used by the event retention loop
	RetentionMeterName = "github.com/stacklok/gateway-release-server/retention"
)

// Result labels shared by the publish and distribute instruments.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// PublishMetrics records publish and revoke pipeline runs.
// A nil *PublishMetrics is valid and records nothing.
type PublishMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// NewPublishMetrics creates the publish instruments. A nil provider yields nil metrics.
func NewPublishMetrics(provider metric.MeterProvider) (*PublishMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(PublishMeterName)

	duration, err := meter.Float64Histogram(
		"gw_release_publish_duration_seconds",
		metric.WithDescription("Duration of release pipeline runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"gw_release_publish_total",
		metric.WithDescription("Number of finished release pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &PublishMetrics{duration: duration, total: total}, nil
}

// RecordRun records one finished pipeline run. kind is "publish" or "revoke".
func (m *PublishMetrics) RecordRun(ctx context.Context, kind string, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", resultLabel(success)),
	)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
}

// DistributeMetrics records individual distributor calls.
// A nil *DistributeMetrics is valid and records nothing.
type DistributeMetrics struct {
	duration metric.Float64Histogram
}

// NewDistributeMetrics creates the distribute instruments. A nil provider yields nil metrics.
func NewDistributeMetrics(provider metric.MeterProvider) (*DistributeMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	duration, err := provider.Meter(DistributeMeterName).Float64Histogram(
		"gw_release_distribute_duration_seconds",
		metric.WithDescription("Duration of distribute and revoke calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}
	return &DistributeMetrics{duration: duration}, nil
}

// RecordCall records one distributor call. op is "distribute" or "revoke".
func (m *DistributeMetrics) RecordCall(ctx context.Context, strategy, op string, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("op", op),
		attribute.Bool("success", success),
	))
}

// RetentionMetrics counts events removed by the retention loop.
// A nil *RetentionMetrics is valid and records nothing.
type RetentionMetrics struct {
	deleted metric.Int64Counter
}

// NewRetentionMetrics creates the retention instruments. A nil provider yields nil metrics.
func NewRetentionMetrics(provider metric.MeterProvider) (*RetentionMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	deleted, err := provider.Meter(RetentionMeterName).Int64Counter(
		"gw_release_events_deleted_total",
		metric.WithDescription("Number of publish events removed by retention"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &RetentionMetrics{deleted: deleted}, nil
}

// RecordDeleted adds n to the deleted event counter.
func (m *RetentionMetrics) RecordDeleted(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.Add(ctx, n)
}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
