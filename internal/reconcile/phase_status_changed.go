package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// runStatusChanged handles SyncRecords whose upstream state no longer
// matches the last-observed state: a historical alarm that resolved
// before its first push is closed silently; an A/C transition pushes a
// resolved notification and clears any suppression; an M transition
// closes the backend alert and replaces it with a suppression.
func (e *Engine) runStatusChanged(ctx context.Context, batchID string) PhaseResult {
	start := time.Now()
	pr := PhaseResult{Name: "status_changed"}

	rows, err := e.gw.FetchStatusChanged(ctx, e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("fetch status changed failed", "batch_id", batchID, "error", err)
		pr.Duration = time.Since(start)
		return pr
	}
	pr.Processed = len(rows)

	for _, row := range rows {
		switch {
		case row.Sync.PushCount == 0:
			e.closeHistorical(ctx, batchID, row, &pr)
		case row.Alarm.State == storegw.StateAutoCleared || row.Alarm.State == storegw.StateConfirmed:
			e.closeResolved(ctx, batchID, row, &pr)
		case row.Alarm.State == storegw.StateManualCleared:
			if e.cfg.UseSuppressionAPI {
				e.closeToSilenced(ctx, batchID, row, &pr)
			} else {
				e.closeResolved(ctx, batchID, row, &pr)
			}
		default:
			pr.Skipped++
		}
	}

	pr.Duration = time.Since(start)
	return pr
}

// closeHistorical transitions a never-pushed SyncRecord straight to
// RESOLVED: there is nothing to notify the backend about.
func (e *Engine) closeHistorical(ctx context.Context, batchID string, row storegw.StatusChangedRow, pr *PhaseResult) {
	if err := checkTransition(row.Sync.State, storegw.SyncResolved); err != nil {
		e.logger.Error("rejected close historical transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncResolved, "error", err)
		pr.Failed++
		return
	}
	if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncResolved, row.Alarm.State, nil, nil); err != nil {
		e.logger.Warn("close historical alarm failed", "alarm_id", row.Alarm.AlarmID, "error", err)
		pr.Failed++
		return
	}
	pr.Succeeded++
}

func (e *Engine) closeResolved(ctx context.Context, batchID string, row storegw.StatusChangedRow, pr *PhaseResult) {
	a := alarm.FromRow(row.Alarm)
	notification := e.mapper.ToNotification(a, true)

	reqStart := time.Now()
	res := e.client.Push(ctx, []alarm.Notification{notification})
	e.recorder.ObserveBackendRequest(time.Since(reqStart), res.OK)

	if !res.OK {
		e.failSync(ctx, batchID, row.Sync.SyncID, row.Alarm.AlarmID, storegw.OpPushResolved, row.Sync.State, storegw.SyncResolved, res)
		pr.Failed++
		return
	}

	if row.Sync.SilenceID.Valid && row.Sync.SilenceID.String != "" {
		delRes := e.client.DeleteSuppression(ctx, row.Sync.SilenceID.String)
		if !delRes.OK {
			e.logger.Warn("delete suppression failed on resolve", "alarm_id", row.Alarm.AlarmID, "silence_id", row.Sync.SilenceID.String, "error", delRes.Err)
		} else {
			e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpDeleteSilence, row.Sync.State, storegw.SyncResolved, delRes)
		}
	}

	if err := checkTransition(row.Sync.State, storegw.SyncResolved); err != nil {
		e.logger.Error("rejected resolve transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncResolved, "error", err)
		pr.Failed++
		return
	}
	if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncResolved, row.Alarm.State, nil, nil); err != nil {
		e.logger.Warn("update sync success failed after resolve push", "alarm_id", row.Alarm.AlarmID, "error", err)
		pr.Failed++
		return
	}

	e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpPushResolved, row.Sync.State, storegw.SyncResolved, res)
	e.recorder.IncSyncOp("push_resolved", "success")
	pr.Succeeded++
}

func (e *Engine) closeToSilenced(ctx context.Context, batchID string, row storegw.StatusChangedRow, pr *PhaseResult) {
	a := alarm.FromRow(row.Alarm)
	notification := e.mapper.ToNotification(a, true)

	reqStart := time.Now()
	pushRes := e.client.Push(ctx, []alarm.Notification{notification})
	e.recorder.ObserveBackendRequest(time.Since(reqStart), pushRes.OK)

	if !pushRes.OK {
		e.failSync(ctx, batchID, row.Sync.SyncID, row.Alarm.AlarmID, storegw.OpPushResolvedSilence, row.Sync.State, storegw.SyncSilenced, pushRes)
		pr.Failed++
		return
	}
	e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpPushResolvedSilence, row.Sync.State, storegw.SyncSilenced, pushRes)

	rule := e.mapper.CreateSuppression(a, e.cfg.SuppressionDuration, "reconciler", time.Now())
	silenceID, suppRes := e.client.CreateSuppression(ctx, rule)

	if !suppRes.OK {
		// Push succeeded but suppression creation failed: remain RESOLVED
		// rather than raise a transient half-state.
		e.logger.Warn("create suppression failed, staying resolved", "alarm_id", row.Alarm.AlarmID, "error", suppRes.Err)
		if err := checkTransition(row.Sync.State, storegw.SyncResolved); err != nil {
			e.logger.Error("rejected resolve transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncResolved, "error", err)
		} else if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncResolved, row.Alarm.State, nil, nil); err != nil {
			e.logger.Warn("update sync success failed after failed suppression", "alarm_id", row.Alarm.AlarmID, "error", err)
		}
		pr.Failed++
		return
	}

	if err := checkTransition(row.Sync.State, storegw.SyncSilenced); err != nil {
		e.logger.Error("rejected silence transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncSilenced, "error", err)
		pr.Failed++
		return
	}
	if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncSilenced, row.Alarm.State, nil, storegw.SilenceIDOrNil(silenceID)); err != nil {
		e.logger.Warn("update sync success failed after create suppression", "alarm_id", row.Alarm.AlarmID, "error", err)
		pr.Failed++
		return
	}
	e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpCreateSilence, storegw.SyncResolved, storegw.SyncSilenced, suppRes)
	e.recorder.IncSyncOp("create_silence", "success")
	pr.Succeeded++
}
