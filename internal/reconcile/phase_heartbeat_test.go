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

func TestHeartbeat_RepushesStaleFiringRecord(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 20, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{
		BatchSize:         100,
		ScanInterval:      time.Minute,
		HeartbeatEnabled:  true,
		HeartbeatInterval: time.Minute,
	})

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(20)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))
	gw.AgeLastPushTime(20, 2*time.Minute)
	client.pushes = nil // count only the heartbeat phase's pushes

	pr := e.runHeartbeat(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)
	require.Len(t, client.pushes, 1)

	sr, ok = gw.SyncRecordFor(20)
	require.True(t, ok)
	assert.Equal(t, int64(2), sr.PushCount)

	var hbAudit int
	for _, entry := range gw.AuditEntries() {
		if entry.Operation == storegw.OpHeartbeat {
			hbAudit++
		}
	}
	assert.Equal(t, 1, hbAudit)
}

func TestHeartbeat_SkipsRecordsNotYetDue(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 21, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{
		BatchSize:         100,
		ScanInterval:      time.Minute,
		HeartbeatEnabled:  true,
		HeartbeatInterval: time.Hour,
	})

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(21)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))
	client.pushes = nil // count only the heartbeat phase's pushes

	pr := e.runHeartbeat(context.Background(), "batch-2")
	assert.Equal(t, 0, pr.Processed)
	assert.Empty(t, client.pushes)
}

func TestHeartbeat_PushFailureRecordsErrorAndBumpsErrorCount(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 22, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngineWithConfig(gw, client, Config{
		BatchSize:         100,
		ScanInterval:      time.Minute,
		HeartbeatEnabled:  true,
		HeartbeatInterval: time.Minute,
	})

	e.runNewActive(context.Background(), "batch-1")
	sr, ok := gw.SyncRecordFor(22)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil))
	gw.AgeLastPushTime(22, 2*time.Minute)

	client.okFunc = func(n []alarm.Notification) bool { return false }

	pr := e.runHeartbeat(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Failed)
}
