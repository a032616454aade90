package storegw

import (
	"context"
	"fmt"
	"time"
)

// SyncStateCounts is a snapshot of how many SyncRecords sit in each state,
// used by the admin statistics endpoint and the active-alarms gauge.
type SyncStateCounts map[SyncState]int64

// CountByState groups SyncRecords by sync_state.
func (g *PostgresGateway) CountByState(ctx context.Context) (SyncStateCounts, error) {
	rows, err := g.pool.Query(ctx, `SELECT sync_state, COUNT(*) FROM sync_status GROUP BY sync_state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	out := SyncStateCounts{}
	for rows.Next() {
		var state SyncState
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("count by state: scan: %w", err)
		}
		out[state] = count
	}
	return out, rows.Err()
}

// RecentAudit returns the most recently appended audit entries, newest first.
func (g *PostgresGateway) RecentAudit(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT log_id, batch_id, alarm_id, operation, old_state, new_state,
		       request_excerpt, response_excerpt, duration_ms, created_at
		FROM sync_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	defer rows.Close()

	var out []AuditLogEntry
	for rows.Next() {
		var e AuditLogEntry
		var durationMs int64
		if err := rows.Scan(
			&e.LogID, &e.BatchID, &e.AlarmID, &e.Operation, &e.OldState, &e.NewState,
			&e.RequestExcerpt, &e.ResponseExcerpt, &durationMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("recent audit: scan: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOldResolved permanently removes RESOLVED SyncRecords last updated
// before cutoff. Used by the cleanup worker's retention policy.
func (g *PostgresGateway) DeleteOldResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := g.pool.Exec(ctx, `
		DELETE FROM sync_status WHERE sync_state = 'RESOLVED' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old resolved: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldAuditEntries permanently removes audit log rows older than cutoff.
func (g *PostgresGateway) DeleteOldAuditEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := g.pool.Exec(ctx, `
		DELETE FROM sync_log WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
