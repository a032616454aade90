package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// CleanupWorker periodically deletes RESOLVED SyncRecords and audit log
// entries older than the configured retention window, so the bookkeeping
// tables don't grow unbounded for a long-running reconciler.
type CleanupWorker struct {
	gw        storegw.StoreGateway
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCleanupWorker builds a worker (not started). interval controls how
// often cleanup runs; retention controls how old a RESOLVED SyncRecord or
// audit entry must be before it is deleted.
func NewCleanupWorker(gw storegw.StoreGateway, interval, retention time.Duration, logger *slog.Logger) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{
		gw:        gw,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in a background goroutine. Non-blocking.
func (w *CleanupWorker) Start(ctx context.Context) {
	go w.run(ctx)
	w.logger.Info("cleanup worker started", "interval", w.interval, "retention", w.retention)
}

func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("cleanup worker stopped (explicit stop)")
			return
		case <-ticker.C:
			w.runCleanup(ctx)
		}
	}
}

func (w *CleanupWorker) runCleanup(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-w.retention)

	resolved, err := w.gw.DeleteOldResolved(ctx, cutoff)
	if err != nil {
		w.logger.Error("delete old resolved sync records failed", "error", err)
	}

	entries, err := w.gw.DeleteOldAuditEntries(ctx, cutoff)
	if err != nil {
		w.logger.Error("delete old audit entries failed", "error", err)
	}

	w.logger.Info("cleanup complete",
		"resolved_deleted", resolved,
		"audit_deleted", entries,
		"duration", time.Since(start),
	)
}

// Stop gracefully stops the worker. Safe to call once; blocks until the
// worker's current cleanup pass (if any) finishes.
func (w *CleanupWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}
