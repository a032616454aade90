package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/memory"
)

// fakeClient is a bcore.Client test double whose Push outcome is
// controlled per-test via okFunc; every other method is a canned success
// since no phase under test exercises them.
type fakeClient struct {
	okFunc                 func(notifications []alarm.Notification) bool
	pushes                 [][]alarm.Notification
	deleteFails            bool
	createSuppressionCalls []alarm.SuppressionRule
}

func (f *fakeClient) Push(ctx context.Context, notifications []alarm.Notification) bcore.Result {
	f.pushes = append(f.pushes, notifications)
	if f.okFunc != nil && !f.okFunc(notifications) {
		return bcore.Failure(500, time.Millisecond, assert.AnError)
	}
	return bcore.Success(200, time.Millisecond, "ok")
}

func (f *fakeClient) CreateSuppression(ctx context.Context, rule alarm.SuppressionRule) (string, bcore.Result) {
	f.createSuppressionCalls = append(f.createSuppressionCalls, rule)
	return "sup-1", bcore.Success(200, 0, "")
}
func (f *fakeClient) DeleteSuppression(ctx context.Context, id string) bcore.Result {
	if f.deleteFails {
		return bcore.Failure(500, time.Millisecond, assert.AnError)
	}
	return bcore.Success(200, 0, "")
}
func (f *fakeClient) ListSuppressions(ctx context.Context) ([]alarm.SuppressionRule, bcore.Result) {
	return nil, bcore.Success(200, 0, "")
}
func (f *fakeClient) ListActive(ctx context.Context) ([]alarm.Notification, bcore.Result) {
	return nil, bcore.Success(200, 0, "")
}
func (f *fakeClient) Health(ctx context.Context) bcore.Result { return bcore.Success(200, 0, "") }
func (f *fakeClient) Close() error                            { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(gw *memory.Gateway, client bcore.Client) *Engine {
	mapper := alarm.NewMapper(nil)
	return New(gw, client, mapper, alarm.DefaultFilter(), nil, nil, testLogger(), Config{
		BatchSize:    100,
		ScanInterval: time.Minute,
	})
}

func seedAlarm(gw *memory.Gateway, id int64, level int, state storegw.UpstreamState) storegw.AlarmRow {
	row := storegw.AlarmRow{
		AlarmID:    id,
		EventID:    id * 10,
		AlarmCode:  1001,
		Level:      level,
		State:      state,
		HostName:   "host-1",
		EventTime:  time.Now().UTC().Add(-time.Hour),
		CreateTime: time.Now().UTC().Add(-time.Hour),
	}
	gw.SeedAlarm(row)
	return row
}

func TestEngine_NewActive_AcceptedAlarmPushesAndInsertsFiringSync(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 1, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	pr := e.runNewActive(context.Background(), "batch-1")

	assert.Equal(t, 1, pr.Processed)
	assert.Equal(t, 1, pr.Succeeded)
	assert.Equal(t, 0, pr.Skipped)

	sr, ok := gw.SyncRecordFor(1)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncFiring, sr.State)

	audit := gw.AuditEntries()
	require.Len(t, audit, 1)
	assert.Equal(t, storegw.OpPushFiring, audit[0].Operation)
}

func TestEngine_NewActive_FilteredLevelIsSkippedNotPushed(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 2, 9, storegw.StateUnacknowledged) // level 9 is outside the default {1,2,3,4} allow-set
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	pr := e.runNewActive(context.Background(), "batch-1")

	assert.Equal(t, 1, pr.Processed)
	assert.Equal(t, 1, pr.Skipped)
	assert.Empty(t, client.pushes)

	_, ok := gw.SyncRecordFor(2)
	assert.False(t, ok, "a filtered alarm must never get a SyncRecord")
}

func TestEngine_NewActive_PushFailureLeavesNoSyncRecordButAppendsErrorAudit(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 3, 1, storegw.StateUnacknowledged)
	client := &fakeClient{okFunc: func([]alarm.Notification) bool { return false }}
	e := newTestEngine(gw, client)

	pr := e.runNewActive(context.Background(), "batch-1")

	assert.Equal(t, 1, pr.Failed)
	_, ok := gw.SyncRecordFor(3)
	assert.False(t, ok)

	audit := gw.AuditEntries()
	require.Len(t, audit, 1)
	assert.Equal(t, storegw.OpError, audit[0].Operation)
}

func TestEngine_Refired_ExactlyOnePushRefiredAuditEntry(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 4, 1, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	// First cycle: new_active fires and inserts a FIRING SyncRecord.
	e.runNewActive(context.Background(), "batch-1")

	// Resolve upstream, then mark the sync RESOLVED as phase 3 would.
	gw.MutateAlarm(4, func(a *storegw.AlarmRow) { a.State = storegw.StateAutoCleared })
	sr, ok := gw.SyncRecordFor(4)
	require.True(t, ok)
	require.NoError(t, gw.UpdateSyncSuccess(context.Background(), sr.SyncID, storegw.SyncResolved, storegw.StateAutoCleared, nil, nil))

	// Alarm re-fires upstream without a new alarm_id (same alarm_id, state flips back to U).
	gw.MutateAlarm(4, func(a *storegw.AlarmRow) { a.State = storegw.StateUnacknowledged })

	pr := e.runRefired(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded)

	sr, ok = gw.SyncRecordFor(4)
	require.True(t, ok)
	assert.Equal(t, storegw.SyncFiring, sr.State)
	assert.Equal(t, int64(2), sr.PushCount, "refire's UpdateSyncSuccess must bump push_count")

	var refireCount int
	for _, e := range gw.AuditEntries() {
		if e.Operation == storegw.OpPushRefired {
			refireCount++
		}
	}
	assert.Equal(t, 1, refireCount, "exactly one PUSH_REFIRED audit entry per refire")
}

func TestEngine_Health_ReportsGatewayFailure(t *testing.T) {
	gw := memory.New()
	gw.SetHealthError(assert.AnError)
	e := newTestEngine(gw, &fakeClient{})

	err := e.Health(context.Background())
	assert.Error(t, err)
}

func TestEngine_SetFilter_TakesEffectOnNextRun(t *testing.T) {
	gw := memory.New()
	seedAlarm(gw, 5, 9, storegw.StateUnacknowledged)
	client := &fakeClient{}
	e := newTestEngine(gw, client)

	pr := e.runNewActive(context.Background(), "batch-1")
	assert.Equal(t, 1, pr.Skipped, "level 9 is rejected by the default filter")

	e.SetFilter(alarm.Filter{Severities: alarm.DefaultSeverityMap(), Levels: map[int]bool{9: true}})

	pr = e.runNewActive(context.Background(), "batch-2")
	assert.Equal(t, 1, pr.Succeeded, "after SetFilter widens the allow-set, the same alarm must sync")
}
