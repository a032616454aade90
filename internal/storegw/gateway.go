package storegw

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/postgres"
)

// StoreGateway is the read/write contract the reconciliation engine uses to
// talk to the source-of-truth store. The engine never sees SQL or a raw
// database handle.
type StoreGateway interface {
	FetchNewActive(ctx context.Context, batchSize int) ([]AlarmRow, error)
	FetchRefired(ctx context.Context, batchSize int) ([]RefireRow, error)
	FetchStatusChanged(ctx context.Context, batchSize int) ([]StatusChangedRow, error)
	FetchHeartbeatDue(ctx context.Context, interval time.Duration, batchSize int) ([]HeartbeatRow, error)
	FetchSilencesToClear(ctx context.Context, batchSize int) ([]SilenceClearRow, error)

	InsertSync(ctx context.Context, alarmID, eventID int64, state SyncState, upstream UpstreamState) (int64, error)
	UpdateSyncSuccess(ctx context.Context, syncID int64, newState SyncState, newUpstream UpstreamState, fingerprint, silenceID *string) error
	UpdateSyncError(ctx context.Context, syncID int64, message string) error
	AppendAudit(ctx context.Context, entry AuditLogEntry) error

	CountByState(ctx context.Context) (SyncStateCounts, error)
	RecentAudit(ctx context.Context, limit int) ([]AuditLogEntry, error)
	DeleteOldResolved(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOldAuditEntries(ctx context.Context, cutoff time.Time) (int64, error)

	Health(ctx context.Context) error
	Close() error
}

// alarmCodeMeta is the rarely-changing alarm-code library row returned by
// cachedAlarmCodeMeta. The read queries in queries.go take
// AlarmName/FaultReason/Remediation from their SQL join and do not call
// cachedAlarmCodeMeta.
type alarmCodeMeta struct {
	Name        string
	FaultReason string
	Remediation string
}

// PostgresGateway is the StoreGateway implementation backed by PostgreSQL.
type PostgresGateway struct {
	pool   postgres.DatabaseConnection
	logger *slog.Logger

	// codeCache holds the alarm-code library lookups made through
	// cachedAlarmCodeMeta; these change rarely (operators edit the library
	// out of band), so a cached code skips the query.
	codeCache *lru.Cache[int64, alarmCodeMeta]

	maxErrorLen int
}

// GatewayOption configures a PostgresGateway at construction time.
type GatewayOption func(*PostgresGateway)

// WithMaxErrorLen bounds the length of the last_error field written by
// UpdateSyncError.
func WithMaxErrorLen(n int) GatewayOption {
	return func(g *PostgresGateway) { g.maxErrorLen = n }
}

// NewPostgresGateway builds a PostgresGateway over an already-connected pool.
func NewPostgresGateway(pool postgres.DatabaseConnection, logger *slog.Logger, opts ...GatewayOption) (*PostgresGateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[int64, alarmCodeMeta](512)
	if err != nil {
		return nil, err
	}

	g := &PostgresGateway{
		pool:        pool,
		logger:      logger,
		codeCache:   cache,
		maxErrorLen: 2000,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Health delegates to the underlying connection pool.
func (g *PostgresGateway) Health(ctx context.Context) error {
	return g.pool.Health(ctx)
}

// Close releases the underlying connection pool.
func (g *PostgresGateway) Close() error {
	if closer, ok := g.pool.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return g.pool.Disconnect(context.Background())
}

// cachedAlarmCodeMeta backfills a metadata field set using the LRU before
// falling back to a direct query, so repeated alarms of the same code don't
// re-join the alarm_code table every cycle.
func (g *PostgresGateway) cachedAlarmCodeMeta(ctx context.Context, code int64) (alarmCodeMeta, error) {
	if meta, ok := g.codeCache.Get(code); ok {
		return meta, nil
	}

	row := g.pool.QueryRow(ctx, `
		SELECT COALESCE(alarm_name, ''), COALESCE(fault_reason, ''), COALESCE(remediation, '')
		FROM alarm_code WHERE alarm_code = $1
	`, code)

	var meta alarmCodeMeta
	if err := row.Scan(&meta.Name, &meta.FaultReason, &meta.Remediation); err != nil {
		return alarmCodeMeta{}, err
	}

	g.codeCache.Add(code, meta)
	return meta, nil
}
