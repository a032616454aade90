package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// runHeartbeat re-pushes firing notifications for SyncRecords whose
// last_push_time has fallen behind the configured interval, so a backend
// that expires alerts on its own silence window never loses a
// still-active alarm. Only runs when heartbeats are enabled.
func (e *Engine) runHeartbeat(ctx context.Context, batchID string) PhaseResult {
	start := time.Now()
	pr := PhaseResult{Name: "heartbeat"}

	rows, err := e.gw.FetchHeartbeatDue(ctx, e.cfg.HeartbeatInterval, e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("fetch heartbeat due failed", "batch_id", batchID, "error", err)
		pr.Duration = time.Since(start)
		return pr
	}
	pr.Processed = len(rows)

	if len(rows) == 0 {
		pr.Duration = time.Since(start)
		return pr
	}

	notifications := make([]alarm.Notification, 0, len(rows))
	for _, row := range rows {
		a := alarm.FromRow(row.Alarm)
		notifications = append(notifications, e.mapper.ToNotification(a, false))
	}

	reqStart := time.Now()
	res := e.client.Push(ctx, notifications)
	e.recorder.ObserveBackendRequest(time.Since(reqStart), res.OK)

	if !res.OK {
		e.logger.Error("push heartbeat failed", "batch_id", batchID, "count", len(notifications), "error", res.Err)
		for _, row := range rows {
			e.failSync(ctx, batchID, row.Sync.SyncID, row.Alarm.AlarmID, storegw.OpHeartbeat, row.Sync.State, row.Sync.State, res)
			pr.Failed++
		}
		pr.Duration = time.Since(start)
		return pr
	}

	for _, row := range rows {
		// A heartbeat is a same-state refresh, not a transition; checkTransition
		// always passes it, but runs anyway so every write goes through it.
		if err := checkTransition(row.Sync.State, row.Sync.State); err != nil {
			e.logger.Error("rejected heartbeat transition", "alarm_id", row.Alarm.AlarmID, "state", row.Sync.State, "error", err)
			pr.Failed++
			continue
		}
		if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, row.Sync.State, row.Alarm.State, nil, nil); err != nil {
			e.logger.Warn("update sync success failed after heartbeat push", "alarm_id", row.Alarm.AlarmID, "error", err)
			pr.Failed++
			continue
		}
		e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpHeartbeat, row.Sync.State, row.Sync.State, res)
		pr.Succeeded++
	}

	e.recorder.IncSyncOp("heartbeat", "success")
	pr.Duration = time.Since(start)
	return pr
}
