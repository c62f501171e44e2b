package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/events/mocks"
)

var retentionNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seedEvents(t *testing.T, store events.Store, times ...time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	h, err := store.CreateHistory(ctx, &events.History{Kind: events.KindPublish, GatewayID: 1, StageID: 10})
	require.NoError(t, err)

	steps := []events.Step{events.StepBuild, events.StepConvert, events.StepDistribute}
	for i, at := range times {
		_, err := store.AppendEvent(ctx, &events.Event{
			HistoryID: h.ID, Target: "mgw-1", Step: steps[i], Status: events.StatusSuccess, CreatedAt: at,
		})
		require.NoError(t, err)
	}
	return h.ID
}

func TestRetentionLoop_RunOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := events.NewMemoryStore()
	id := seedEvents(t, store,
		retentionNow.Add(-72*time.Hour),
		retentionNow.Add(-25*time.Hour),
		retentionNow.Add(-time.Hour),
	)

	loop := NewRetentionLoop(store, 24*time.Hour, time.Hour,
		WithRetentionClock(clocktesting.NewFakeClock(retentionNow)))

	deleted, err := loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err := store.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, events.StepDistribute, list[0].Step)
}

func TestRetentionLoop_RunOnceError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().DeleteEventsBefore(gomock.Any(), retentionNow.Add(-time.Hour)).Return(int64(0), errors.New("read only"))

	loop := NewRetentionLoop(store, time.Hour, time.Minute,
		WithRetentionClock(clocktesting.NewFakeClock(retentionNow)))
	_, err := loop.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read only")
}

func TestRetentionLoop_StartStop(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(retentionNow)
	store := events.NewMemoryStore()
	id := seedEvents(t, store, retentionNow.Add(-50*time.Minute), retentionNow.Add(-30*time.Minute))

	loop := NewRetentionLoop(store, time.Hour, 10*time.Minute, WithRetentionClock(clk))

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Start(context.Background()) }()

	// the first pass runs immediately and finds nothing to delete
	require.Eventually(t, clk.HasWaiters, 5*time.Second, time.Millisecond)
	list, err := store.ListEvents(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// once the events expired, the next tick removes all but the latest of the chain
	clk.Step(time.Hour)
	require.Eventually(t, func() bool {
		list, err := store.ListEvents(context.Background(), id)
		return err == nil && len(list) == 1 && list[0].Step == events.StepConvert
	}, 5*time.Second, time.Millisecond)

	loop.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("retention loop did not stop")
	}

	// a second Start after Stop is rejected
	assert.Error(t, loop.Start(context.Background()))
}

func TestRetentionLoop_StopWithoutStart(t *testing.T) {
	t.Parallel()

	loop := NewRetentionLoop(events.NewMemoryStore(), time.Hour, time.Minute)
	assert.NotPanics(t, loop.Stop)
}

func TestRetentionLoop_Jitter(t *testing.T) {
	t.Parallel()

	loop := NewRetentionLoop(events.NewMemoryStore(), time.Hour, 10*time.Minute)
	for range 50 {
		d := loop.nextInterval()
		assert.GreaterOrEqual(t, d, 9*time.Minute)
		assert.Less(t, d, 11*time.Minute)
	}
}
