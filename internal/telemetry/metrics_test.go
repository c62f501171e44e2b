package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	pm, err := NewPublishMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, pm)

	dm, err := NewDistributeMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, dm)

	rm, err := NewRetentionMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, rm)

	hm, err := NewHTTPMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, hm)

	// nil receivers must not panic
	ctx := context.Background()
	pm.RecordRun(ctx, "publish", time.Second, true)
	dm.RecordCall(ctx, "registry", "distribute", time.Second, false)
	rm.RecordDeleted(ctx, 3)
}

func TestPublishMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider(t)
	pm, err := NewPublishMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	pm.RecordRun(ctx, "publish", 2*time.Second, true)
	pm.RecordRun(ctx, "publish", time.Second, false)
	pm.RecordRun(ctx, "revoke", time.Second, true)

	metrics := collect(t, reader)

	total, ok := metrics["gw_release_publish_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, total.DataPoints, 3)
	for _, dp := range total.DataPoints {
		assert.Equal(t, int64(1), dp.Value)
		_, hasKind := dp.Attributes.Value(attribute.Key("kind"))
		assert.True(t, hasKind)
	}

	hist, ok := metrics["gw_release_publish_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestDistributeMetrics_RecordCall(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider(t)
	dm, err := NewDistributeMetrics(mp)
	require.NoError(t, err)

	dm.RecordCall(context.Background(), "bundle", "distribute", 10*time.Millisecond, true)

	hist, ok := collect(t, reader)["gw_release_distribute_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	strategy, _ := dp.Attributes.Value(attribute.Key("strategy"))
	assert.Equal(t, "bundle", strategy.AsString())
	success, _ := dp.Attributes.Value(attribute.Key("success"))
	assert.True(t, success.AsBool())
}

func TestRetentionMetrics_RecordDeleted(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider(t)
	rm, err := NewRetentionMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordDeleted(ctx, 4)
	rm.RecordDeleted(ctx, 0)
	rm.RecordDeleted(ctx, 2)

	sum, ok := collect(t, reader)["gw_release_events_deleted_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(6), sum.DataPoints[0].Value)
}
