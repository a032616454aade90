package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// runNewActive fetches alarms with no SyncRecord yet, filters them, pushes
// the filtered set as firing, and inserts a FIRING SyncRecord for each
// accepted alarm.
func (e *Engine) runNewActive(ctx context.Context, batchID string) PhaseResult {
	start := time.Now()
	pr := PhaseResult{Name: "new_active"}

	rows, err := e.gw.FetchNewActive(ctx, e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("fetch new active failed", "batch_id", batchID, "error", err)
		pr.Duration = time.Since(start)
		return pr
	}
	pr.Processed = len(rows)

	filter := e.currentFilter()
	var accepted []storegw.AlarmRow
	var notifications []alarm.Notification
	for _, row := range rows {
		a := alarm.FromRow(row)
		if !filter.ShouldSync(a) {
			pr.Skipped++
			continue
		}
		accepted = append(accepted, row)
		notifications = append(notifications, e.mapper.ToNotification(a, false))
	}

	if len(notifications) == 0 {
		pr.Duration = time.Since(start)
		return pr
	}

	reqStart := time.Now()
	res := e.client.Push(ctx, notifications)
	e.recorder.ObserveBackendRequest(time.Since(reqStart), res.OK)

	if !res.OK {
		e.logger.Error("push new active failed", "batch_id", batchID, "count", len(notifications), "error", res.Err)
		for _, row := range accepted {
			e.appendErrorAudit(ctx, batchID, row.AlarmID, storegw.OpPushFiring, "", storegw.SyncFiring, res)
			pr.Failed++
		}
		pr.Duration = time.Since(start)
		return pr
	}

	for _, row := range accepted {
		syncID, err := e.gw.InsertSync(ctx, row.AlarmID, row.EventID, storegw.SyncFiring, storegw.StateUnacknowledged)
		if err != nil {
			e.logger.Warn("insert sync failed after successful push", "batch_id", batchID, "alarm_id", row.AlarmID, "error", err)
			pr.Failed++
			continue
		}
		e.appendAudit(ctx, batchID, row.AlarmID, storegw.OpPushFiring, "", storegw.SyncFiring, res)
		_ = syncID
		pr.Succeeded++
	}

	e.recorder.IncSyncOp("push_firing", "success")
	pr.Duration = time.Since(start)
	return pr
}
