package reconcile

import (
	"context"

	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// appendAudit records a successful operation's audit entry. Failures to
// write the entry are logged by the gateway itself and never propagated —
// the audit log is best-effort.
func (e *Engine) appendAudit(ctx context.Context, batchID string, alarmID int64, op storegw.AuditOp, oldState, newState storegw.SyncState, res bcore.Result) {
	entry := storegw.AuditLogEntry{
		BatchID:         batchID,
		AlarmID:         alarmID,
		Operation:       op,
		OldState:        oldState,
		NewState:        newState,
		ResponseExcerpt: excerpt(res.Detail, 2000),
		Duration:        res.Duration,
	}
	_ = e.gw.AppendAudit(ctx, entry)
}

// appendErrorAudit records a per-alarm failure: it appends an ERROR audit
// entry and counts the failed operation. It does not touch a SyncRecord;
// failSync also bumps error_count for rows that have one.
func (e *Engine) appendErrorAudit(ctx context.Context, batchID string, alarmID int64, op storegw.AuditOp, oldState, attemptedState storegw.SyncState, res bcore.Result) {
	msg := "push failed"
	if res.Err != nil {
		msg = res.Err.Error()
	}

	entry := storegw.AuditLogEntry{
		BatchID:         batchID,
		AlarmID:         alarmID,
		Operation:       storegw.OpError,
		OldState:        oldState,
		NewState:        attemptedState,
		ResponseExcerpt: excerpt(msg, 2000),
		Duration:        res.Duration,
	}
	_ = e.gw.AppendAudit(ctx, entry)
	e.recorder.IncSyncOp(string(op), "error")
}

// failSync records the error on an existing SyncRecord and appends an
// ERROR audit entry; used by phases operating on rows that already have a
// SyncRecord (refire, status-changed, heartbeat, silence-cleanup).
func (e *Engine) failSync(ctx context.Context, batchID string, syncID, alarmID int64, op storegw.AuditOp, oldState, attemptedState storegw.SyncState, res bcore.Result) {
	msg := "operation failed"
	if res.Err != nil {
		msg = res.Err.Error()
	}
	if err := e.gw.UpdateSyncError(ctx, syncID, msg); err != nil {
		e.logger.Warn("update sync error failed", "alarm_id", alarmID, "error", err)
	}
	e.appendErrorAudit(ctx, batchID, alarmID, op, oldState, attemptedState, res)
}
