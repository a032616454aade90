// Package memory is an in-process fake of storegw.StoreGateway, used to
// drive the reconciliation engine's property and scenario tests without a
// live Postgres instance.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// Gateway is a StoreGateway backed entirely by in-memory maps. Seed alarms
// with SeedAlarm/MutateAlarm; the five reads evaluate the same predicates
// as the SQL gateway against the seeded state.
type Gateway struct {
	mu sync.Mutex

	alarms  map[int64]storegw.AlarmRow
	syncs   map[int64]storegw.SyncRecord // keyed by alarm_id
	nextSID int64
	audit   []storegw.AuditLogEntry

	healthErr error
}

// New builds an empty Gateway.
func New() *Gateway {
	return &Gateway{
		alarms: make(map[int64]storegw.AlarmRow),
		syncs:  make(map[int64]storegw.SyncRecord),
	}
}

// SeedAlarm inserts or replaces the upstream row for an alarm_id.
func (g *Gateway) SeedAlarm(a storegw.AlarmRow) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alarms[a.AlarmID] = a
}

// MutateAlarm applies fn to the current row for alarmID and stores the result.
func (g *Gateway) MutateAlarm(alarmID int64, fn func(*storegw.AlarmRow)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.alarms[alarmID]
	fn(&a)
	g.alarms[alarmID] = a
}

// AgeLastPushTime pushes a SyncRecord's last_push_time back by d, so tests
// can simulate a heartbeat interval elapsing without sleeping.
func (g *Gateway) AgeLastPushTime(alarmID int64, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sr, ok := g.syncs[alarmID]
	if !ok {
		return
	}
	if sr.LastPushTime.Valid {
		sr.LastPushTime.Time = sr.LastPushTime.Time.Add(-d)
	} else {
		sr.LastPushTime = sql.NullTime{Time: time.Now().UTC().Add(-d), Valid: true}
	}
	g.syncs[alarmID] = sr
}

// SyncRecordFor returns the current SyncRecord for an alarm, if any.
func (g *Gateway) SyncRecordFor(alarmID int64) (storegw.SyncRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.syncs[alarmID]
	return r, ok
}

// AuditEntries returns a copy of every audit row appended so far.
func (g *Gateway) AuditEntries() []storegw.AuditLogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]storegw.AuditLogEntry, len(g.audit))
	copy(out, g.audit)
	return out
}

// SetHealthError forces Health to fail, for admin-surface tests.
func (g *Gateway) SetHealthError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.healthErr = err
}

func (g *Gateway) Health(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.healthErr
}

func (g *Gateway) Close() error { return nil }

func (g *Gateway) sortedAlarmIDs() []int64 {
	ids := make([]int64, 0, len(g.alarms))
	for id := range g.alarms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.alarms[ids[i]].CreateTime.Before(g.alarms[ids[j]].CreateTime)
	})
	return ids
}

func (g *Gateway) FetchNewActive(ctx context.Context, batchSize int) ([]storegw.AlarmRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []storegw.AlarmRow
	for _, id := range g.sortedAlarmIDs() {
		a := g.alarms[id]
		if _, exists := g.syncs[id]; exists {
			continue
		}
		if a.State != storegw.StateUnacknowledged {
			continue
		}
		out = append(out, a)
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) FetchRefired(ctx context.Context, batchSize int) ([]storegw.RefireRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []storegw.RefireRow
	for _, id := range g.sortedAlarmIDs() {
		sr, ok := g.syncs[id]
		if !ok || sr.State != storegw.SyncResolved {
			continue
		}
		a := g.alarms[id]
		if a.State != storegw.StateUnacknowledged {
			continue
		}
		out = append(out, storegw.RefireRow{Sync: sr, Alarm: a})
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) FetchStatusChanged(ctx context.Context, batchSize int) ([]storegw.StatusChangedRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []storegw.StatusChangedRow
	for _, id := range g.sortedAlarmIDs() {
		sr, ok := g.syncs[id]
		if !ok || !isReadActive(sr.State) {
			continue
		}
		a := g.alarms[id]
		if a.State == sr.LastUpstream {
			continue
		}
		out = append(out, storegw.StatusChangedRow{Sync: sr, Alarm: a})
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) FetchHeartbeatDue(ctx context.Context, interval time.Duration, batchSize int) ([]storegw.HeartbeatRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().UTC().Add(-interval)
	var out []storegw.HeartbeatRow
	for _, id := range g.sortedAlarmIDs() {
		sr, ok := g.syncs[id]
		if !ok || sr.State != storegw.SyncFiring {
			continue
		}
		a := g.alarms[id]
		if a.State != storegw.StateUnacknowledged {
			continue
		}
		if !sr.LastPushTime.Valid || sr.LastPushTime.Time.After(cutoff) {
			continue
		}
		out = append(out, storegw.HeartbeatRow{Sync: sr, Alarm: a})
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) FetchSilencesToClear(ctx context.Context, batchSize int) ([]storegw.SilenceClearRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []storegw.SilenceClearRow
	for _, id := range g.sortedAlarmIDs() {
		sr, ok := g.syncs[id]
		if !ok || sr.State != storegw.SyncSilenced || !sr.SilenceID.Valid {
			continue
		}
		a := g.alarms[id]
		if a.State != storegw.StateAutoCleared && a.State != storegw.StateConfirmed {
			continue
		}
		out = append(out, storegw.SilenceClearRow{Sync: sr, Alarm: a})
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) InsertSync(ctx context.Context, alarmID, eventID int64, state storegw.SyncState, upstream storegw.UpstreamState) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.syncs[alarmID]; exists {
		return 0, storegw.ErrDuplicateKey
	}

	g.nextSID++
	now := time.Now().UTC()
	g.syncs[alarmID] = storegw.SyncRecord{
		SyncID:       g.nextSID,
		AlarmID:      alarmID,
		LastUpstream: upstream,
		State:        state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return g.nextSID, nil
}

func (g *Gateway) UpdateSyncSuccess(ctx context.Context, syncID int64, newState storegw.SyncState, newUpstream storegw.UpstreamState, fingerprint, silenceID *string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for alarmID, sr := range g.syncs {
		if sr.SyncID != syncID {
			continue
		}
		sr.State = newState
		sr.LastUpstream = newUpstream
		if fingerprint != nil {
			sr.Fingerprint.String, sr.Fingerprint.Valid = *fingerprint, true
		}
		if silenceID != nil {
			sr.SilenceID.String, sr.SilenceID.Valid = *silenceID, true
		} else {
			sr.SilenceID = sql.NullString{}
		}
		sr.LastPushTime.Time, sr.LastPushTime.Valid = time.Now().UTC(), true
		sr.PushCount++
		sr.ErrorCount = 0
		sr.LastError = sql.NullString{}
		sr.UpdatedAt = time.Now().UTC()
		g.syncs[alarmID] = sr
		return nil
	}
	return nil
}

func (g *Gateway) UpdateSyncError(ctx context.Context, syncID int64, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for alarmID, sr := range g.syncs {
		if sr.SyncID != syncID {
			continue
		}
		sr.ErrorCount++
		sr.LastError.String, sr.LastError.Valid = message, true
		sr.UpdatedAt = time.Now().UTC()
		g.syncs[alarmID] = sr
		return nil
	}
	return nil
}

func (g *Gateway) AppendAudit(ctx context.Context, entry storegw.AuditLogEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.LogID = int64(len(g.audit)) + 1
	entry.CreatedAt = time.Now().UTC()
	g.audit = append(g.audit, entry)
	return nil
}

func (g *Gateway) CountByState(ctx context.Context) (storegw.SyncStateCounts, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := storegw.SyncStateCounts{}
	for _, sr := range g.syncs {
		out[sr.State]++
	}
	return out, nil
}

func (g *Gateway) RecentAudit(ctx context.Context, limit int) ([]storegw.AuditLogEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.audit)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]storegw.AuditLogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = g.audit[len(g.audit)-1-i]
	}
	return out, nil
}

func (g *Gateway) DeleteOldResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var n int64
	for alarmID, sr := range g.syncs {
		if sr.State == storegw.SyncResolved && sr.UpdatedAt.Before(cutoff) {
			delete(g.syncs, alarmID)
			n++
		}
	}
	return n, nil
}

func (g *Gateway) DeleteOldAuditEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.audit[:0]
	var n int64
	for _, e := range g.audit {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	g.audit = kept
	return n, nil
}

func isReadActive(s storegw.SyncState) bool {
	for _, active := range storegw.ReadActiveStates {
		if s == active {
			return true
		}
	}
	return false
}
