package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/memory"
)

func newTestEngineWithConfig(gw *memory.Gateway, client *fakeClient, cfg Config) *Engine {
	mapper := alarm.NewMapper(nil)
	return New(gw, client, mapper, alarm.DefaultFilter(), nil, nil, testLogger(), cfg)
}

func TestStatusChanged_NeverConfirmedAlarmClosesSilently(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 10, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	e.runNewActive(context.Background(), "batch-1") // PushCount stays 0 after insert
	client.pushes = nil                             // count only the status-changed phase's pushes

	gw.MutateAlarm(10, func(a *storegw.AlarmRow) { a.State = storegw.StateAutoCleared })

	pr := e.runStatusChanged(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)
	assert.Empty(t, client.pushes, "a never-reconfirmed alarm must close without another push")

	sr, ok := gw.SyncRecordFor(10)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncResolved, sr.State)
}

func TestStatusChanged_ReconfirmedAlarmResolvesWithPush(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 11, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(11)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))
	client.pushes = nil // count only the status-changed phase's pushes

	gw.MutateAlarm(11, func(a *storegw.AlarmRow) { a.State = storegw.StateAutoCleared })

	pr := e.runStatusChanged(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)
	require.Len(t, client.pushes, 1)

	sr, ok = gw.SyncRecordFor(11)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncResolved, sr.State)

	var resolvedAudit int
	for _, entry := range gw.AuditEntries() {
		if entry.Operation == storegw.OpPushResolved {
			resolvedAudit++
		}
	}
	assert.Equal(t, 1, resolvedAudit)
}

func TestStatusChanged_ManualClearCreatesSuppression(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 12, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{BatchSize: 100, ScanInterval: time.Minute, SuppressionDuration: time.Hour, UseSuppressionAPI: true})

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(12)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))

	gw.MutateAlarm(12, func(a *storegw.AlarmRow) { a.State = storegw.StateManualCleared })

	pr := e.runStatusChanged(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)

	sr, ok = gw.SyncRecordFor(12)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncSilenced, sr.State)
	assert.True(t, sr.SilenceID.Valid)
}

func TestStatusChanged_ManualClearResolvesDirectlyWhenSuppressionAPIDisabled(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 14, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{BatchSize: 100, ScanInterval: time.Minute, SuppressionDuration: time.Hour, UseSuppressionAPI: false})

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(14)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))

	gw.MutateAlarm(14, func(a *storegw.AlarmRow) { a.State = storegw.StateManualCleared })

	pr := e.runStatusChanged(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)

	sr, ok = gw.SyncRecordFor(14)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncResolved, sr.State, "with the suppression API disabled a manual clear must resolve directly, not go through SILENCED")
	assert.False(t, sr.SilenceID.Valid)
	assert.Empty(t, client.createSuppressionCalls, "CreateSuppression must never be called when the suppression API is disabled")
}

func TestStatusChanged_PushFailureOnResolveLeavesRecordFiring(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 13, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(13)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))

	gw.MutateAlarm(13, func(a *storegw.AlarmRow) { a.State = storegw.StateAutoCleared })
	client.okFunc = func([]alarm.Notification) bool { return false }

	pr := e.runStatusChanged(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Failed)

	sr, ok = gw.SyncRecordFor(13)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncFiring, sr.State, "a failed resolve push must not transition the record")
}
