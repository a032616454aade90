package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/memory"
)

func TestNewBatchID_SortsByMillisecondTimestamp(t *testing.T) {
	earlier := newBatchID(time.UnixMilli(1000))
	later := newBatchID(time.UnixMilli(2000))
	assert.Less(t, earlier, later)
}

func TestNewBatchID_DistinctWithinSameMillisecond(t *testing.T) {
	now := time.UnixMilli(5000)
	a := newBatchID(now)
	b := newBatchID(now)
	assert.NotEqual(t, a, b, "two cycles in the same millisecond must still get distinct batch ids")
}

func TestRunCycle_RunsCorePhasesAndAggregatesTotals(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 40, 1, storegw.StateUnacknowledged)
	seedAlarm(gw, 41, 9, storegw.StateUnacknowledged) // filtered, counted as skipped not failed
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalProcessed())
	assert.Equal(t, 0, result.TotalFailed())

	var names []string
	for _, p := range result.Phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"new_active", "refired", "status_changed"}, names, "heartbeat and silence_cleanup are opt-in and must be absent when disabled")
}

func TestRunCycle_IncludesOptionalPhasesWhenEnabled(t *testing.T) {
	gw := memory.New()
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{
		BatchSize:         100,
		ScanInterval:      time.Minute,
		HeartbeatEnabled:  true,
		HeartbeatInterval: time.Minute,
		AutoRemoveOnClear: true,
	})

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	var names []string
	for _, p := range result.Phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"new_active", "refired", "status_changed", "heartbeat", "silence_cleanup"}, names)
}

func TestRunCycle_AbortsRemainingPhasesOnContextCancellation(t *testing.T) {
	gw := memory.New()
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.RunCycle(ctx)
	assert.Error(t, err)
	assert.Empty(t, result.Phases, "a cycle starting with an already-cancelled context must not run any phase")
}
