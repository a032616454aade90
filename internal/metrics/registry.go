// Package metrics exposes the reconciler's Prometheus metrics: cycle and
// phase timing, per-operation sync counters, backend request latency, and
// the gauges an operator dashboards against (active alarms, last sync
// time, service up).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry implements reconcile.Recorder against a Prometheus registerer.
type Registry struct {
	cycleDuration   prometheus.Histogram
	cycleProcessed  prometheus.Counter
	cycleFailed     prometheus.Counter
	phaseDuration   *prometheus.HistogramVec
	phaseProcessed  *prometheus.CounterVec
	phaseFailed     *prometheus.CounterVec
	syncOps         *prometheus.CounterVec
	backendDuration prometheus.Histogram
	backendErrors   prometheus.Counter
	activeAlarms    prometheus.Gauge
	lastSyncTime    prometheus.Gauge
	up              prometheus.Gauge
}

// New registers the reconciler's metric family on reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zmc_reconciler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full reconciliation cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cycleProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "cycle_alarms_processed_total",
			Help:      "Alarms processed across all cycles.",
		}),
		cycleFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "cycle_alarms_failed_total",
			Help:      "Alarms that failed processing across all cycles.",
		}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zmc_reconciler",
			Name:      "phase_duration_seconds",
			Help:      "Duration of a single reconciliation phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}, []string{"phase"}),
		phaseProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "phase_alarms_processed_total",
			Help:      "Alarms processed per phase.",
		}, []string{"phase"}),
		phaseFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "phase_alarms_failed_total",
			Help:      "Alarms that failed per phase.",
		}, []string{"phase"}),
		syncOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "sync_operations_total",
			Help:      "Sync operations by type and outcome.",
		}, []string{"operation", "status"}),
		backendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zmc_reconciler",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of outbound notification-backend HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		backendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zmc_reconciler",
			Name:      "backend_request_errors_total",
			Help:      "Outbound notification-backend requests that did not succeed.",
		}),
		activeAlarms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "zmc_reconciler",
			Name:      "active_alarms",
			Help:      "Alarms currently tracked with a non-resolved SyncRecord.",
		}),
		lastSyncTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "zmc_reconciler",
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last completed reconciliation cycle.",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "zmc_reconciler",
			Name:      "up",
			Help:      "Whether the reconciler considers itself healthy (1) or not (0).",
		}),
	}
}

func (r *Registry) ObserveCycle(duration time.Duration, processed, failed int) {
	r.cycleDuration.Observe(duration.Seconds())
	r.cycleProcessed.Add(float64(processed))
	r.cycleFailed.Add(float64(failed))
}

func (r *Registry) ObservePhase(phase string, duration time.Duration, processed, failed int) {
	r.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	r.phaseProcessed.WithLabelValues(phase).Add(float64(processed))
	r.phaseFailed.WithLabelValues(phase).Add(float64(failed))
}

func (r *Registry) IncSyncOp(operation, status string) {
	r.syncOps.WithLabelValues(operation, status).Inc()
}

func (r *Registry) ObserveBackendRequest(duration time.Duration, ok bool) {
	r.backendDuration.Observe(duration.Seconds())
	if !ok {
		r.backendErrors.Inc()
	}
}

func (r *Registry) SetActiveAlarms(n int) {
	r.activeAlarms.Set(float64(n))
}

func (r *Registry) SetLastSyncTimestamp(t time.Time) {
	r.lastSyncTime.Set(float64(t.Unix()))
}

func (r *Registry) SetUp(up bool) {
	if up {
		r.up.Set(1)
		return
	}
	r.up.Set(0)
}
