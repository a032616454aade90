package backend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/aggregator"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/bcore"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/direct"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend/httpx"
)

// Client, Result, and RetryConfig are re-exported from the leaf bcore/httpx
// packages so callers only ever need to import "backend".
type (
	Client      = bcore.Client
	Result      = bcore.Result
	RetryConfig = httpx.RetryConfig
)

var (
	Success          = bcore.Success
	Failure          = bcore.Failure
	DefaultRetryConfig = httpx.DefaultRetryConfig
)

// Mode selects which backend variant New builds.
type Mode string

const (
	ModeAggregator Mode = "aggregator"
	ModeDirect     Mode = "direct"
)

// Config holds the settings for whichever backend variant Mode selects.
// Only the fields relevant to Mode are consulted.
type Config struct {
	Mode Mode

	Aggregator AggregatorConfig
	Direct     DirectConfig

	Retry             RetryConfig
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// AggregatorConfig configures the Alertmanager-style aggregator client.
type AggregatorConfig struct {
	URL      string
	AuthUser string
	AuthPass string
}

// DirectConfig configures the Opsgenie direct-incident client.
type DirectConfig struct {
	URL             string
	APIKey          string
	DefaultTeam     string
	DefaultPriority string
}

// New builds the Client selected by cfg.Mode. The engine never branches on
// Mode itself — it only ever sees the returned Client interface.
func New(cfg Config, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}

	switch cfg.Mode {
	case ModeAggregator:
		if cfg.Aggregator.URL == "" {
			return nil, fmt.Errorf("backend: aggregator.url is required when mode=aggregator")
		}
		transport := httpx.New(timeout, retry, cfg.RequestsPerSecond, logger)
		return aggregator.New(aggregator.Options{
			BaseURL:  cfg.Aggregator.URL,
			AuthUser: cfg.Aggregator.AuthUser,
			AuthPass: cfg.Aggregator.AuthPass,
		}, transport, logger), nil

	case ModeDirect:
		if cfg.Direct.APIKey == "" {
			return nil, fmt.Errorf("backend: direct.api_key is required when mode=direct")
		}
		transport := httpx.New(timeout, retry, cfg.RequestsPerSecond, logger)
		return direct.New(direct.Options{
			BaseURL:         cfg.Direct.URL,
			APIKey:          cfg.Direct.APIKey,
			DefaultTeam:     cfg.Direct.DefaultTeam,
			DefaultPriority: cfg.Direct.DefaultPriority,
		}, transport, logger), nil

	default:
		return nil, fmt.Errorf("backend: unknown mode %q (must be %q or %q)", cfg.Mode, ModeAggregator, ModeDirect)
	}
}
