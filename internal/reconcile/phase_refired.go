package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// runRefired pushes a single firing notification for each SyncRecord that
// went RESOLVED and has since returned to upstream state U, then
// transitions it back to FIRING.
func (e *Engine) runRefired(ctx context.Context, batchID string) PhaseResult {
	start := time.Now()
	pr := PhaseResult{Name: "refired"}

	rows, err := e.gw.FetchRefired(ctx, e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("fetch refired failed", "batch_id", batchID, "error", err)
		pr.Duration = time.Since(start)
		return pr
	}
	pr.Processed = len(rows)

	for _, row := range rows {
		a := alarm.FromRow(row.Alarm)
		notification := e.mapper.ToNotification(a, false)

		reqStart := time.Now()
		res := e.client.Push(ctx, []alarm.Notification{notification})
		e.recorder.ObserveBackendRequest(time.Since(reqStart), res.OK)

		if !res.OK {
			e.failSync(ctx, batchID, row.Sync.SyncID, row.Alarm.AlarmID, storegw.OpPushRefired, storegw.SyncResolved, storegw.SyncFiring, res)
			pr.Failed++
			continue
		}

		if err := checkTransition(row.Sync.State, storegw.SyncFiring); err != nil {
			e.logger.Error("rejected refire transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncFiring, "error", err)
			pr.Failed++
			continue
		}
		if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncFiring, storegw.StateUnacknowledged, nil, nil); err != nil {
			e.logger.Warn("update sync success failed after refire push", "alarm_id", row.Alarm.AlarmID, "error", err)
			pr.Failed++
			continue
		}
		e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpPushRefired, storegw.SyncResolved, storegw.SyncFiring, res)
		e.recorder.IncSyncOp("push_refired", "success")
		pr.Succeeded++
	}

	pr.Duration = time.Since(start)
	return pr
}
