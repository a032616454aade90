package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// runSilenceCleanup deletes the backend suppression for each SILENCED
// SyncRecord whose upstream alarm has since auto-cleared or been
// confirmed, and transitions the record to RESOLVED. Only runs when
// auto-remove-on-clear is enabled; otherwise operators clear
// suppressions by hand.
func (e *Engine) runSilenceCleanup(ctx context.Context, batchID string) PhaseResult {
	start := time.Now()
	pr := PhaseResult{Name: "silence_cleanup"}

	rows, err := e.gw.FetchSilencesToClear(ctx, e.cfg.BatchSize)
	if err != nil {
		e.logger.Error("fetch silences to clear failed", "batch_id", batchID, "error", err)
		pr.Duration = time.Since(start)
		return pr
	}
	pr.Processed = len(rows)

	for _, row := range rows {
		if !row.Sync.SilenceID.Valid || row.Sync.SilenceID.String == "" {
			// Nothing to delete upstream; clear the local state directly.
			if err := checkTransition(row.Sync.State, storegw.SyncResolved); err != nil {
				e.logger.Error("rejected silence cleanup transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncResolved, "error", err)
				pr.Failed++
				continue
			}
			if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncResolved, row.Alarm.State, nil, nil); err != nil {
				e.logger.Warn("clear silence without silence id failed", "alarm_id", row.Alarm.AlarmID, "error", err)
				pr.Failed++
				continue
			}
			pr.Succeeded++
			continue
		}

		res := e.client.DeleteSuppression(ctx, row.Sync.SilenceID.String)
		if !res.OK {
			e.failSync(ctx, batchID, row.Sync.SyncID, row.Alarm.AlarmID, storegw.OpDeleteSilence, storegw.SyncSilenced, storegw.SyncResolved, res)
			pr.Failed++
			continue
		}

		if err := checkTransition(row.Sync.State, storegw.SyncResolved); err != nil {
			e.logger.Error("rejected silence cleanup transition", "alarm_id", row.Alarm.AlarmID, "from", row.Sync.State, "to", storegw.SyncResolved, "error", err)
			pr.Failed++
			continue
		}
		if err := e.gw.UpdateSyncSuccess(ctx, row.Sync.SyncID, storegw.SyncResolved, row.Alarm.State, nil, nil); err != nil {
			e.logger.Warn("update sync success failed after delete suppression", "alarm_id", row.Alarm.AlarmID, "error", err)
			pr.Failed++
			continue
		}
		e.appendAudit(ctx, batchID, row.Alarm.AlarmID, storegw.OpDeleteSilence, storegw.SyncSilenced, storegw.SyncResolved, res)
		e.recorder.IncSyncOp("delete_silence", "success")
		pr.Succeeded++
	}

	pr.Duration = time.Since(start)
	return pr
}
