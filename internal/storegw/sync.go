package storegw

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const postgresUniqueViolation = "23505"

// InsertSync creates the SyncRecord for an alarm observed for the first
// time. It fails with ErrDuplicateKey if one already exists — enforced by
// a unique index on alarm_id, guarding against a race between two cycles
// (never expected with the single-reconciler model, but the index is the
// sole serialization point).
func (g *PostgresGateway) InsertSync(ctx context.Context, alarmID, eventID int64, state SyncState, upstream UpstreamState) (int64, error) {
	var syncID int64
	row := g.pool.QueryRow(ctx, `
		INSERT INTO sync_status (alarm_id, last_upstream_state, sync_state, push_count, error_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, now(), now())
		RETURNING sync_id
	`, alarmID, upstream, state)

	if err := row.Scan(&syncID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert sync: %w", err)
	}

	return syncID, nil
}

// UpdateSyncSuccess records a successful push: bumps last_push_time and
// push_count, applies the new state, and clears any previously recorded
// error.
func (g *PostgresGateway) UpdateSyncSuccess(ctx context.Context, syncID int64, newState SyncState, newUpstream UpstreamState, fingerprint, silenceID *string) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE sync_status
		SET sync_state = $2,
		    last_upstream_state = $3,
		    fingerprint = COALESCE($4, fingerprint),
		    silence_id = $5,
		    last_push_time = now(),
		    push_count = push_count + 1,
		    error_count = 0,
		    last_error = NULL,
		    updated_at = now()
		WHERE sync_id = $1
	`, syncID, newState, newUpstream, fingerprint, silenceID)
	if err != nil {
		return fmt.Errorf("update sync success: %w", err)
	}
	return nil
}

// UpdateSyncError increments error_count and records a truncated message
// It never clears sync_state — errors are per-attempt
// bookkeeping, not transitions.
func (g *PostgresGateway) UpdateSyncError(ctx context.Context, syncID int64, message string) error {
	if g.maxErrorLen > 0 && len(message) > g.maxErrorLen {
		message = message[:g.maxErrorLen]
	}

	_, err := g.pool.Exec(ctx, `
		UPDATE sync_status
		SET error_count = error_count + 1,
		    last_error = $2,
		    updated_at = now()
		WHERE sync_id = $1
	`, syncID, message)
	if err != nil {
		return fmt.Errorf("update sync error: %w", err)
	}
	return nil
}

// SilenceIDOrNil adapts a SyncRecord's optional silence id into the
// *string UpdateSyncSuccess expects.
func SilenceIDOrNil(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

