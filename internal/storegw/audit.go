package storegw

import (
	"context"
)

// AppendAudit writes one audit-log row. A failure is logged here; callers
// treat audit writes as best-effort and typically don't fail the cycle
// over one.
func (g *PostgresGateway) AppendAudit(ctx context.Context, entry AuditLogEntry) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO sync_log (batch_id, alarm_id, operation, old_state, new_state,
		                       request_excerpt, response_excerpt, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, entry.BatchID, entry.AlarmID, entry.Operation, entry.OldState, entry.NewState,
		entry.RequestExcerpt, entry.ResponseExcerpt, entry.Duration.Milliseconds())

	if err != nil {
		g.logger.Warn("append audit failed",
			"batch_id", entry.BatchID,
			"alarm_id", entry.AlarmID,
			"operation", entry.Operation,
			"error", err)
	}

	return err
}
