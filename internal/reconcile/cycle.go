package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newBatchID builds a monotonically-sortable cycle identifier: a
// millisecond timestamp prefix (so batch ids sort by cycle start time)
// followed by a short random suffix to disambiguate cycles that start
// within the same millisecond in tests.
func newBatchID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// RunCycle runs all five phases sequentially and aggregates their results.
// A phase-level error is logged and the phase's result reflects the
// failure, but subsequent phases still run — only a panic or ctx
// cancellation aborts the remaining phases.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	batchID := newBatchID(start)

	result := CycleResult{BatchID: batchID, StartedAt: start}

	phases := []func(context.Context, string) PhaseResult{
		e.runNewActive,
		e.runRefired,
		e.runStatusChanged,
	}
	if e.cfg.HeartbeatEnabled {
		phases = append(phases, e.runHeartbeat)
	}
	if e.cfg.AutoRemoveOnClear {
		phases = append(phases, e.runSilenceCleanup)
	}

	for _, phase := range phases {
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result, result.Err
		default:
		}

		pr := phase(ctx, batchID)
		result.Phases = append(result.Phases, pr)
		e.recorder.ObservePhase(pr.Name, pr.Duration, pr.Processed, pr.Failed)
	}

	result.Duration = time.Since(start)
	e.recorder.ObserveCycle(result.Duration, result.TotalProcessed(), result.TotalFailed())
	e.recorder.SetLastSyncTimestamp(start)

	return result, nil
}

// runNewActiveOnly runs phase 1 alone, used for the optional sync-on-startup
// pass before the periodic loop begins.
func (e *Engine) runNewActiveOnly(ctx context.Context) PhaseResult {
	batchID := newBatchID(time.Now())
	pr := e.runNewActive(ctx, batchID)
	e.recorder.ObservePhase(pr.Name, pr.Duration, pr.Processed, pr.Failed)
	return pr
}
