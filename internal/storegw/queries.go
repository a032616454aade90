package storegw

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// The abstract schema behind these queries stands in for the upstream
// store's logical contract. Column
// names below are the reconciler's own naming for that contract; a real
// deployment maps them onto whatever the source-of-truth store actually
// calls them via a view layer, which is out of scope here.
const alarmRowColumns = `
	s.alarm_id, s.event_id, s.alarm_code, s.level, s.state,
	d.host_name, d.host_ip, s.application, s.domain, s.environment,
	e.detail, e.ext_1, e.ext_2, e.ext_3, e.ext_4, e.ext_5,
	e.ext_6, e.ext_7, e.ext_8, e.ext_9, e.ext_10,
	e.event_time, s.create_time, s.reset_time, s.clear_time, s.confirm_time, s.clear_reason,
	COALESCE(c.alarm_name, ''), COALESCE(c.fault_reason, ''), COALESCE(c.remediation, ''),
	COALESCE(d.device_id, ''), COALESCE(d.task_type, ''), COALESCE(c.alarm_type_name, '')
`

const alarmRowFrom = `
	FROM alarm_summary s
	JOIN alarm_event e ON e.event_id = s.event_id
	LEFT JOIN alarm_code c ON c.alarm_code = s.alarm_code
	LEFT JOIN device d ON d.host_name = s.host_name
`

func scanAlarmRow(row pgx.Row) (AlarmRow, error) {
	var a AlarmRow
	err := row.Scan(
		&a.AlarmID, &a.EventID, &a.AlarmCode, &a.Level, &a.State,
		&a.HostName, &a.HostIP, &a.Application, &a.Domain, &a.Environment,
		&a.Detail, &a.Ext[0], &a.Ext[1], &a.Ext[2], &a.Ext[3], &a.Ext[4],
		&a.Ext[5], &a.Ext[6], &a.Ext[7], &a.Ext[8], &a.Ext[9],
		&a.EventTime, &a.CreateTime, &a.ResetTime, &a.ClearTime, &a.ConfirmTime, &a.ClearReason,
		&a.AlarmName, &a.FaultReason, &a.Remediation, &a.DeviceID, &a.TaskType, &a.AlarmTypeName,
	)
	return a, err
}

func scanSyncRecord(row pgx.Row) (SyncRecord, error) {
	var r SyncRecord
	err := row.Scan(
		&r.SyncID, &r.AlarmID, &r.LastUpstream, &r.State,
		&r.LastPushTime, &r.PushCount, &r.Fingerprint, &r.SilenceID,
		&r.ErrorCount, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const syncRecordColumns = `
	sync_id, alarm_id, last_upstream_state, sync_state,
	last_push_time, push_count, fingerprint, silence_id,
	error_count, last_error, created_at, updated_at
`

// FetchNewActive returns active alarms that have never been synced.
func (g *PostgresGateway) FetchNewActive(ctx context.Context, batchSize int) ([]AlarmRow, error) {
	query := fmt.Sprintf(`
		SELECT %s %s
		WHERE s.state = 'U'
		  AND NOT EXISTS (SELECT 1 FROM sync_status ss WHERE ss.alarm_id = s.alarm_id)
		ORDER BY s.create_time ASC
		LIMIT $1
	`, alarmRowColumns, alarmRowFrom)

	rows, err := g.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch new active: %w", err)
	}
	defer rows.Close()

	var out []AlarmRow
	for rows.Next() {
		a, err := scanAlarmRow(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch new active: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FetchRefired returns alarms that went active again after being marked resolved.
func (g *PostgresGateway) FetchRefired(ctx context.Context, batchSize int) ([]RefireRow, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		%s
		JOIN sync_status ss ON ss.alarm_id = s.alarm_id
		WHERE ss.sync_state = 'RESOLVED' AND s.state = 'U'
		ORDER BY s.create_time ASC
		LIMIT $1
	`, syncRecordColumns, alarmRowColumns, alarmRowFrom)

	rows, err := g.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch refired: %w", err)
	}
	defer rows.Close()

	var out []RefireRow
	for rows.Next() {
		sr, err := scanCombinedSyncThenAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch refired: scan: %w", err)
		}
		out = append(out, RefireRow{Sync: sr.sync, Alarm: sr.alarm})
	}
	return out, rows.Err()
}

// FetchStatusChanged returns alarms whose upstream state diverges from the last synced state.
func (g *PostgresGateway) FetchStatusChanged(ctx context.Context, batchSize int) ([]StatusChangedRow, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		%s
		JOIN sync_status ss ON ss.alarm_id = s.alarm_id
		WHERE ss.sync_state IN ('FIRING', 'PENDING') AND s.state != ss.last_upstream_state
		ORDER BY s.create_time ASC
		LIMIT $1
	`, syncRecordColumns, alarmRowColumns, alarmRowFrom)

	rows, err := g.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch status changed: %w", err)
	}
	defer rows.Close()

	var out []StatusChangedRow
	for rows.Next() {
		sr, err := scanCombinedSyncThenAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch status changed: scan: %w", err)
		}
		out = append(out, StatusChangedRow{Sync: sr.sync, Alarm: sr.alarm})
	}
	return out, rows.Err()
}

// FetchHeartbeatDue returns still-firing alarms whose last push is older than interval.
func (g *PostgresGateway) FetchHeartbeatDue(ctx context.Context, interval time.Duration, batchSize int) ([]HeartbeatRow, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		%s
		JOIN sync_status ss ON ss.alarm_id = s.alarm_id
		WHERE ss.sync_state = 'FIRING' AND s.state = 'U'
		  AND ss.last_push_time < $2
		ORDER BY ss.last_push_time ASC
		LIMIT $1
	`, syncRecordColumns, alarmRowColumns, alarmRowFrom)

	cutoff := time.Now().UTC().Add(-interval)
	rows, err := g.pool.Query(ctx, query, batchSize, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetch heartbeat due: %w", err)
	}
	defer rows.Close()

	var out []HeartbeatRow
	for rows.Next() {
		sr, err := scanCombinedSyncThenAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch heartbeat due: scan: %w", err)
		}
		out = append(out, HeartbeatRow{Sync: sr.sync, Alarm: sr.alarm})
	}
	return out, rows.Err()
}

// FetchSilencesToClear returns silenced alarms whose upstream state has since cleared.
func (g *PostgresGateway) FetchSilencesToClear(ctx context.Context, batchSize int) ([]SilenceClearRow, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		%s
		JOIN sync_status ss ON ss.alarm_id = s.alarm_id
		WHERE ss.sync_state = 'SILENCED' AND ss.silence_id IS NOT NULL
		  AND s.state IN ('A', 'C')
		ORDER BY s.create_time ASC
		LIMIT $1
	`, syncRecordColumns, alarmRowColumns, alarmRowFrom)

	rows, err := g.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch silences to clear: %w", err)
	}
	defer rows.Close()

	var out []SilenceClearRow
	for rows.Next() {
		sr, err := scanCombinedSyncThenAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch silences to clear: scan: %w", err)
		}
		out = append(out, SilenceClearRow{Sync: sr.sync, Alarm: sr.alarm})
	}
	return out, rows.Err()
}

type combinedRow struct {
	sync  SyncRecord
	alarm AlarmRow
}

// scanCombinedSyncThenAlarm scans a row produced by a query that selects
// syncRecordColumns immediately followed by alarmRowColumns.
func scanCombinedSyncThenAlarm(row pgx.Row) (combinedRow, error) {
	var out combinedRow
	err := row.Scan(
		&out.sync.SyncID, &out.sync.AlarmID, &out.sync.LastUpstream, &out.sync.State,
		&out.sync.LastPushTime, &out.sync.PushCount, &out.sync.Fingerprint, &out.sync.SilenceID,
		&out.sync.ErrorCount, &out.sync.LastError, &out.sync.CreatedAt, &out.sync.UpdatedAt,
		&out.alarm.AlarmID, &out.alarm.EventID, &out.alarm.AlarmCode, &out.alarm.Level, &out.alarm.State,
		&out.alarm.HostName, &out.alarm.HostIP, &out.alarm.Application, &out.alarm.Domain, &out.alarm.Environment,
		&out.alarm.Detail, &out.alarm.Ext[0], &out.alarm.Ext[1], &out.alarm.Ext[2], &out.alarm.Ext[3], &out.alarm.Ext[4],
		&out.alarm.Ext[5], &out.alarm.Ext[6], &out.alarm.Ext[7], &out.alarm.Ext[8], &out.alarm.Ext[9],
		&out.alarm.EventTime, &out.alarm.CreateTime, &out.alarm.ResetTime, &out.alarm.ClearTime, &out.alarm.ConfirmTime, &out.alarm.ClearReason,
		&out.alarm.AlarmName, &out.alarm.FaultReason, &out.alarm.Remediation, &out.alarm.DeviceID, &out.alarm.TaskType, &out.alarm.AlarmTypeName,
	)
	return out, err
}
