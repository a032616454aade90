package alarm

import "github.com/vitaliisemenov/zmc-reconciler/internal/storegw"

// SeverityMap maps upstream alarm level to a notification severity string.
// Overridable via configuration; DefaultSeverityMap is the built-in default.
type SeverityMap map[int]string

// DefaultSeverityMap is the default mapping: level 0 → warning; 1 →
// critical; 2 → error; 3 → warning; 4 → info.
func DefaultSeverityMap() SeverityMap {
	return SeverityMap{
		0: "warning",
		1: "critical",
		2: "error",
		3: "warning",
		4: "info",
	}
}

// Severity resolves a level to its mapped severity, falling back to "info"
// for an unmapped level rather than producing an empty label.
func (m SeverityMap) Severity(level int) string {
	if sev, ok := m[level]; ok {
		return sev
	}
	return "info"
}

// StateMap maps an upstream alarm state to this system's sync state. The
// default: U → FIRING; A → RESOLVED; M → SILENCED; C → RESOLVED.
type StateMap map[storegw.UpstreamState]storegw.SyncState

// DefaultStateMap returns the default state mapping.
func DefaultStateMap() StateMap {
	return StateMap{
		storegw.StateUnacknowledged: storegw.SyncFiring,
		storegw.StateAutoCleared:    storegw.SyncResolved,
		storegw.StateManualCleared:  storegw.SyncSilenced,
		storegw.StateConfirmed:      storegw.SyncResolved,
	}
}

// SyncState resolves an upstream state, defaulting to RESOLVED for an
// unmapped value so an unrecognized state never gets silently treated as
// still-firing.
func (m StateMap) SyncState(state storegw.UpstreamState) storegw.SyncState {
	if s, ok := m[state]; ok {
		return s
	}
	return storegw.SyncResolved
}

// Filter holds the configured allow-sets used by ShouldSync.
type Filter struct {
	Severities SeverityMap
	// Levels is the configured allow-set of upstream levels (default
	// {1,2,3,4}). Empty means "reject everything" — callers should
	// populate it from config defaults, never leave it nil.
	Levels map[int]bool
	// SeverityFilter is the configured severity allow-set; empty means
	// "all severities pass".
	SeverityFilter map[string]bool
}

// DefaultFilter returns the default allow-set {1,2,3,4} with no severity
// restriction.
func DefaultFilter() Filter {
	return Filter{
		Severities: DefaultSeverityMap(),
		Levels:     map[int]bool{1: true, 2: true, 3: true, 4: true},
	}
}

// ShouldSync reports whether an alarm passes the sync filter: the upstream
// level must be in the configured allow-set AND the mapped severity must be
// in the configured severity allow-set (empty = all).
func (f Filter) ShouldSync(a Alarm) bool {
	if !f.Levels[a.Level] {
		return false
	}
	if len(f.SeverityFilter) == 0 {
		return true
	}
	return f.SeverityFilter[f.Severities.Severity(a.Level)]
}
