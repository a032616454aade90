// Package config loads and validates the reconciler's configuration:
// store connection, backend selection, sync tunables, suppression
// tunables, severity/state mapping overrides, static labels, logging,
// and the admin server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config is the root configuration tree.
type Config struct {
	Store       StoreConfig       `mapstructure:"store"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Suppression SuppressionConfig `mapstructure:"suppression"`
	Mapping     MappingConfig     `mapstructure:"mapping"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Redis       RedisConfig       `mapstructure:"redis"`
	App         AppConfig         `mapstructure:"app"`
}

// StoreConfig is the upstream store connection (Postgres).
type StoreConfig struct {
	Host               string        `mapstructure:"host" validate:"required"`
	Port               int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Database           string        `mapstructure:"database" validate:"required"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns           int32         `mapstructure:"max_conns"`
	MinConns           int32         `mapstructure:"min_conns"`
	MaxConnLifetime    time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime    time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod  time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	MigrationsDir      string        `mapstructure:"migrations_dir"`

	RetryMaxRetries    int           `mapstructure:"retry_max_retries"`
	RetryInitialDelay  time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay      time.Duration `mapstructure:"retry_max_delay"`
	RetryBackoffFactor float64       `mapstructure:"retry_backoff_factor"`
	RetryJitterFactor  float64       `mapstructure:"retry_jitter_factor"`

	HealthCircuitBreakerThreshold int           `mapstructure:"health_circuit_breaker_threshold"`
	HealthCircuitBreakerReset     time.Duration `mapstructure:"health_circuit_breaker_reset"`
}

// BackendMode selects which notification backend variant is active.
type BackendMode string

const (
	BackendModeAggregator BackendMode = "aggregator"
	BackendModeDirect     BackendMode = "direct"
)

// BackendConfig configures the notification backend client.
type BackendConfig struct {
	Mode              BackendMode        `mapstructure:"mode"`
	Aggregator        AggregatorConfig   `mapstructure:"aggregator"`
	Direct            DirectConfig       `mapstructure:"direct"`
	RequestTimeout    time.Duration      `mapstructure:"request_timeout"`
	RequestsPerSecond float64            `mapstructure:"requests_per_second"`
	Retry             BackendRetryConfig `mapstructure:"retry"`
}

// BackendRetryConfig is the fixed back-off policy applied to backend calls.
type BackendRetryConfig struct {
	Count    int           `mapstructure:"count"`
	Interval time.Duration `mapstructure:"interval"`
}

// AggregatorConfig configures the Alertmanager-style aggregator variant.
type AggregatorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	AuthUser string `mapstructure:"auth_user"`
	AuthPass string `mapstructure:"auth_pass"`
}

// DirectConfig configures the Opsgenie direct-incident variant.
type DirectConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	URL             string `mapstructure:"url"`
	APIKey          string `mapstructure:"api_key"`
	DefaultTeam     string `mapstructure:"default_team"`
	DefaultPriority string `mapstructure:"default_priority"`
}

// SyncConfig controls the reconciliation cycle scheduler.
type SyncConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ScanInterval      time.Duration `mapstructure:"scan_interval" validate:"required,gt=0"`
	HeartbeatEnabled  bool          `mapstructure:"heartbeat_enabled"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	BatchSize         int           `mapstructure:"batch_size" validate:"required,gt=0"`
	SyncOnStartup     bool          `mapstructure:"sync_on_startup"`
	HistoryHours      int           `mapstructure:"history_hours"`
	AlarmLevels       []int         `mapstructure:"alarm_levels" validate:"required,min=1"`
	SeverityFilter    []string      `mapstructure:"severity_filter"`
}

// SuppressionConfig controls manual-clear suppression behavior.
type SuppressionConfig struct {
	UseAPI              bool          `mapstructure:"use_api"`
	DefaultDuration      time.Duration `mapstructure:"default_duration"`
	AutoRemoveOnClear    bool          `mapstructure:"auto_remove_on_clear"`
	CommentTemplate      string        `mapstructure:"comment_template"`
}

// MappingConfig holds the configurable severity/state overrides and the
// static labels applied to every notification.
type MappingConfig struct {
	SeverityByLevel map[int]string    `mapstructure:"severity_by_level"`
	StateByUpstream map[string]string `mapstructure:"state_by_upstream"`
	StaticLabels    map[string]string `mapstructure:"static_labels"`
}

// LogConfig controls the structured logger and its file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig controls the admin HTTP surface.
type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RedisConfig backs the optional dedupe cache. An empty Addr disables Redis
// and the cache falls back to an in-process LRU.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AppConfig holds miscellaneous application identity fields.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LoadConfig loads configuration from an optional YAML file plus
// environment variables (env replacer "."→"_"), applies defaults, and
// validates the result.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("store.host", "localhost")
	viper.SetDefault("store.port", 5432)
	viper.SetDefault("store.database", "zmc")
	viper.SetDefault("store.user", "reconciler")
	viper.SetDefault("store.ssl_mode", "disable")
	viper.SetDefault("store.max_conns", 10)
	viper.SetDefault("store.min_conns", 2)
	viper.SetDefault("store.max_conn_lifetime", "1h")
	viper.SetDefault("store.max_conn_idle_time", "30m")
	viper.SetDefault("store.health_check_period", "30s")
	viper.SetDefault("store.connect_timeout", "10s")
	viper.SetDefault("store.migrations_dir", "migrations")
	viper.SetDefault("store.retry_max_retries", 3)
	viper.SetDefault("store.retry_initial_delay", "100ms")
	viper.SetDefault("store.retry_max_delay", "5s")
	viper.SetDefault("store.retry_backoff_factor", 2.0)
	viper.SetDefault("store.retry_jitter_factor", 0.1)
	viper.SetDefault("store.health_circuit_breaker_threshold", 5)
	viper.SetDefault("store.health_circuit_breaker_reset", "1m")

	viper.SetDefault("backend.mode", "aggregator")
	viper.SetDefault("backend.request_timeout", "10s")
	viper.SetDefault("backend.requests_per_second", 0)
	viper.SetDefault("backend.retry.count", 3)
	viper.SetDefault("backend.retry.interval", "1s")
	viper.SetDefault("backend.direct.default_priority", "P3")

	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.scan_interval", "30s")
	viper.SetDefault("sync.heartbeat_enabled", true)
	viper.SetDefault("sync.heartbeat_interval", "5m")
	viper.SetDefault("sync.batch_size", 200)
	viper.SetDefault("sync.sync_on_startup", true)
	viper.SetDefault("sync.history_hours", 72)
	viper.SetDefault("sync.alarm_levels", []int{1, 2, 3, 4})
	viper.SetDefault("sync.severity_filter", []string{})

	viper.SetDefault("suppression.use_api", true)
	viper.SetDefault("suppression.default_duration", "24h")
	viper.SetDefault("suppression.auto_remove_on_clear", true)
	viper.SetDefault("suppression.comment_template", "Auto-silenced by %s at %s: %s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.graceful_shutdown_timeout", "15s")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "10m")

	viper.SetDefault("app.name", "zmc-reconciler")
	viper.SetDefault("app.environment", "development")
}

// Validate enforces the invariants the rest of the service relies on,
// including the backend-selection ambiguity rule: exactly one of
// aggregator/direct must be enabled, reconciled against backend.mode.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if err := c.validateBackend(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	return nil
}

// formatValidationError collapses validator's per-field errors into a
// single message; LoadConfig only ever surfaces the first failure to the
// caller, so there's no need to preserve the full validator.ValidationErrors
// slice past this point.
func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("config validation failed: %w", err)
	}
	first := verrs[0]
	return fmt.Errorf("%s failed %q validation (value=%v)", first.Namespace(), first.Tag(), first.Value())
}

func (c *Config) validateBackend() error {
	aggEnabled := c.Backend.Aggregator.Enabled || c.Backend.Mode == BackendModeAggregator
	dirEnabled := c.Backend.Direct.Enabled || c.Backend.Mode == BackendModeDirect

	if aggEnabled == dirEnabled {
		return fmt.Errorf("exactly one of aggregator/direct must be active (mode=%q, aggregator.enabled=%v, direct.enabled=%v)",
			c.Backend.Mode, c.Backend.Aggregator.Enabled, c.Backend.Direct.Enabled)
	}

	switch {
	case aggEnabled && c.Backend.Aggregator.URL == "":
		return fmt.Errorf("aggregator.url is required when the aggregator backend is active")
	case dirEnabled && c.Backend.Direct.APIKey == "":
		return fmt.Errorf("direct.api_key is required when the direct backend is active")
	}

	return nil
}

// IsProduction reports whether the app environment is "production".
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
