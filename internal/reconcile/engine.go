// Package reconcile drives the reconciliation cycle: five sequential
// phases, each reading its own bounded row set from the store gateway,
// pushing notifications through the backend client, and writing back
// SyncRecord transitions and audit entries.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/reconcile/dedupcache"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// Recorder receives cycle/phase/backend observability events. Kept as a
// narrow interface here (rather than importing internal/metrics directly)
// so the engine package never depends on the Prometheus wiring.
type Recorder interface {
	ObserveCycle(duration time.Duration, processed, failed int)
	ObservePhase(phase string, duration time.Duration, processed, failed int)
	IncSyncOp(operation, status string)
	ObserveBackendRequest(duration time.Duration, ok bool)
	SetActiveAlarms(n int)
	SetLastSyncTimestamp(t time.Time)
	SetUp(up bool)
}

// noopRecorder discards every observation; used when no Recorder is wired.
type noopRecorder struct{}

func (noopRecorder) ObserveCycle(time.Duration, int, int)         {}
func (noopRecorder) ObservePhase(string, time.Duration, int, int) {}
func (noopRecorder) IncSyncOp(string, string)                     {}
func (noopRecorder) ObserveBackendRequest(time.Duration, bool)    {}
func (noopRecorder) SetActiveAlarms(int)                          {}
func (noopRecorder) SetLastSyncTimestamp(time.Time)                {}
func (noopRecorder) SetUp(bool)                                    {}

// Config holds the engine's own tunables, distinct from the connection
// settings the store gateway and backend client already own.
type Config struct {
	BatchSize           int
	ScanInterval        time.Duration
	HeartbeatEnabled    bool
	HeartbeatInterval   time.Duration
	SyncOnStartup       bool
	AutoRemoveOnClear   bool
	SuppressionDuration time.Duration
	UseSuppressionAPI   bool
}

// Engine runs reconciliation cycles on a fixed schedule.
type Engine struct {
	gw     storegw.StoreGateway
	client bcore.Client
	mapper alarm.Mapper
	dedupe dedupcache.Cache

	filterMu sync.RWMutex
	filter   alarm.Filter

	recorder Recorder
	logger   *slog.Logger
	cfg      Config

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Engine. A nil Recorder is replaced by a no-op
// implementation and a nil dedupcache.Cache by an in-process local cache,
// so callers that don't need them can omit them.
func New(gw storegw.StoreGateway, client bcore.Client, mapper alarm.Mapper, filter alarm.Filter, dedupe dedupcache.Cache, recorder Recorder, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if dedupe == nil {
		dedupe = dedupcache.NewLocalCache(cfg.ScanInterval, 4096)
	}
	return &Engine{
		gw:       gw,
		client:   client,
		mapper:   mapper,
		filter:   filter,
		dedupe:   dedupe,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetFilter swaps the sync allow-set at runtime, for the config hot-reload
// path: only new-alarm intake consults it, so a change takes effect from
// the next phase 1 run without restarting the engine.
func (e *Engine) SetFilter(f alarm.Filter) {
	e.filterMu.Lock()
	e.filter = f
	e.filterMu.Unlock()
}

func (e *Engine) currentFilter() alarm.Filter {
	e.filterMu.RLock()
	defer e.filterMu.RUnlock()
	return e.filter
}

// Start runs the scheduler loop in a background goroutine: an optional
// startup pass of phase 1 only, then full cycles every ScanInterval until
// Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
	e.logger.Info("reconciliation engine started", "scan_interval", e.cfg.ScanInterval)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)
	e.recorder.SetUp(true)

	if e.cfg.SyncOnStartup {
		result := e.runNewActiveOnly(ctx)
		e.logger.Info("startup sync complete", "processed", result.Processed, "failed", result.Failed)
	}

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.recorder.SetUp(false)
			e.logger.Info("reconciliation engine stopped: context cancelled")
			return
		case <-e.stopCh:
			e.recorder.SetUp(false)
			e.logger.Info("reconciliation engine stopped: explicit stop")
			return
		case <-ticker.C:
			result, err := e.RunCycle(ctx)
			if err != nil {
				e.logger.Error("reconciliation cycle failed", "batch_id", result.BatchID, "error", err)
				continue
			}
			e.logger.Info("reconciliation cycle complete",
				"batch_id", result.BatchID,
				"duration", result.Duration,
				"processed", result.TotalProcessed(),
				"failed", result.TotalFailed())
		}
	}
}

// Health reports whether the engine's dependencies (store, backend) are
// reachable, for the admin surface's readiness probe.
func (e *Engine) Health(ctx context.Context) error {
	if err := e.gw.Health(ctx); err != nil {
		return fmt.Errorf("store gateway: %w", err)
	}
	if res := e.client.Health(ctx); !res.OK {
		return fmt.Errorf("backend client: %w", res.Err)
	}
	return nil
}

// Stop signals the scheduler loop to exit and blocks until the in-flight
// cycle (if any) finishes or ctx's deadline elapses.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.stopCh)
	select {
	case <-e.doneCh:
		return e.client.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}
