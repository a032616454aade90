// Package audit wraps the Store Gateway's audit-log operations for
// consumers outside the reconciliation engine itself — the admin HTTP
// surface's log listing, and the retention cleanup worker.
package audit

import (
	"context"
	"fmt"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// Recorder reads back what the engine has already written through
// storegw.StoreGateway.AppendAudit. It does not append entries itself —
// the engine owns that path (internal/reconcile's audit helpers) so every
// write carries the operation's actual before/after state inline.
type Recorder struct {
	gw storegw.StoreGateway
}

// New builds a Recorder over gw.
func New(gw storegw.StoreGateway) *Recorder {
	return &Recorder{gw: gw}
}

// Recent returns the most recent audit entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]storegw.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := r.gw.RecentAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit entries: %w", err)
	}
	return entries, nil
}

// StateCounts returns the current SyncRecord count per state, used by the
// admin statistics endpoint.
func (r *Recorder) StateCounts(ctx context.Context) (storegw.SyncStateCounts, error) {
	counts, err := r.gw.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync state counts: %w", err)
	}
	return counts, nil
}
