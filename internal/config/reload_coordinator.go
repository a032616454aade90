package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"
)

// ReloadResult summarizes one reload attempt.
type ReloadResult struct {
	Version  int64
	Changed  bool
	Duration time.Duration
}

// ReloadCoordinator reloads the YAML config file on demand (SIGHUP in
// cmd/reconciler), validates it, and applies the subset of tunables that
// are safe to change without restarting the process: the sync filter and
// the config the admin "current config" endpoint serves. Scheduler
// tunables (scan interval, batch size) and connection settings are
// deliberately NOT hot-swapped — they're read once at startup by the
// engine and the store pool, and changing them correctly would mean
// resetting a running ticker and a live connection pool, which is a
// restart in every way that matters. Operators change those by restarting
// the process.
type ReloadCoordinator struct {
	current    atomic.Pointer[Config]
	configPath string
	version    int64

	buildFilter func(cfg *Config) interface{}
	applyFilter func(filter interface{})
	exporter    *Exporter

	logger *slog.Logger
}

// NewReloadCoordinator builds a coordinator. buildFilter and applyFilter
// are supplied by cmd/reconciler, which has both internal/config and
// internal/alarm in scope; keeping the alarm.Filter type out of this
// package's signatures avoids a dependency cycle risk as the two grow.
func NewReloadCoordinator(initial *Config, configPath string, buildFilter func(cfg *Config) interface{}, applyFilter func(filter interface{}), exporter *Exporter, logger *slog.Logger) *ReloadCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	rc := &ReloadCoordinator{
		configPath:  configPath,
		version:     1,
		buildFilter: buildFilter,
		applyFilter: applyFilter,
		exporter:    exporter,
		logger:      logger,
	}
	rc.current.Store(initial)
	return rc
}

// Current returns the most recently applied configuration.
func (rc *ReloadCoordinator) Current() *Config {
	return rc.current.Load()
}

// Reload re-reads the config file, validates it, and — if the sync-filter
// relevant fields changed — applies the new filter and updates the
// exporter. Safe to call repeatedly; a reload that changes nothing is a
// cheap no-op.
func (rc *ReloadCoordinator) Reload(ctx context.Context) (ReloadResult, error) {
	start := time.Now()
	old := rc.current.Load()

	newCfg, err := LoadConfig(rc.configPath)
	if err != nil {
		rc.logger.Error("config reload failed: load", "path", rc.configPath, "error", err)
		return ReloadResult{}, fmt.Errorf("load config: %w", err)
	}

	changedFields := diffFilterFields(old, newCfg)
	if len(changedFields) == 0 {
		rc.logger.Info("config reload: no filter-relevant changes", "path", rc.configPath)
		return ReloadResult{Version: rc.version, Changed: false, Duration: time.Since(start)}, nil
	}

	rc.current.Store(newCfg)
	rc.version++

	if rc.buildFilter != nil && rc.applyFilter != nil {
		rc.applyFilter(rc.buildFilter(newCfg))
	}
	if rc.exporter != nil {
		rc.exporter.Update(newCfg)
	}

	rc.logger.Info("config reloaded",
		"path", rc.configPath,
		"version", rc.version,
		"changed_fields", changedFields,
		"duration", time.Since(start))

	return ReloadResult{Version: rc.version, Changed: true, Duration: time.Since(start)}, nil
}

// diffFilterFields reports which of the sync-filter inputs changed
// between old and new. A plain field-by-field compare rather than a
// generic deep-diff: there are exactly three fields that matter here (two
// slices and a map), and a
// reflect.DeepEqual per field is both simpler and clearer about intent
// than diffing the whole struct.
func diffFilterFields(old, updated *Config) []string {
	var changed []string
	if !reflect.DeepEqual(old.Sync.AlarmLevels, updated.Sync.AlarmLevels) {
		changed = append(changed, "sync.alarm_levels")
	}
	if !reflect.DeepEqual(old.Sync.SeverityFilter, updated.Sync.SeverityFilter) {
		changed = append(changed, "sync.severity_filter")
	}
	if !reflect.DeepEqual(old.Mapping.SeverityByLevel, updated.Mapping.SeverityByLevel) {
		changed = append(changed, "mapping.severity_by_level")
	}
	return changed
}
