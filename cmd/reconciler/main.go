// Command reconciler runs the alarm-to-notification reconciliation loop:
// it polls the upstream alarm store on a fixed schedule, pushes
// notifications through the configured backend, and serves an operator
// HTTP surface (health, metrics, sync status) alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/vitaliisemenov/zmc-reconciler/internal/admin"
	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
	"github.com/vitaliisemenov/zmc-reconciler/internal/audit"
	"github.com/vitaliisemenov/zmc-reconciler/internal/backend"
	"github.com/vitaliisemenov/zmc-reconciler/internal/config"
	"github.com/vitaliisemenov/zmc-reconciler/internal/metrics"
	"github.com/vitaliisemenov/zmc-reconciler/internal/reconcile"
	"github.com/vitaliisemenov/zmc-reconciler/internal/reconcile/dedupcache"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/postgres"
	"github.com/vitaliisemenov/zmc-reconciler/pkg/logger"
)

const (
	serviceName    = "zmc-alarm-reconciler"
	serviceVersion = "1.0.0"
	defaultCleanupInterval = 1 * time.Hour
	defaultRetention       = 30 * 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional; env vars and defaults fill the rest)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	log.Info("starting reconciler", "service", serviceName, "version", serviceVersion, "environment", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := postgres.NewPostgresPool(&postgres.PostgresConfig{
		Host:              cfg.Store.Host,
		Port:              cfg.Store.Port,
		Database:          cfg.Store.Database,
		User:              cfg.Store.User,
		Password:          cfg.Store.Password,
		SSLMode:           cfg.Store.SSLMode,
		MaxConns:          cfg.Store.MaxConns,
		MinConns:          cfg.Store.MinConns,
		MaxConnLifetime:   cfg.Store.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Store.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Store.HealthCheckPeriod,
		ConnectTimeout:    cfg.Store.ConnectTimeout,
		Retry: postgres.RetryConfig{
			MaxRetries:    cfg.Store.RetryMaxRetries,
			InitialDelay:  cfg.Store.RetryInitialDelay,
			MaxDelay:      cfg.Store.RetryMaxDelay,
			BackoffFactor: cfg.Store.RetryBackoffFactor,
			JitterFactor:  cfg.Store.RetryJitterFactor,
		},
		HealthCircuitBreakerThreshold: cfg.Store.HealthCircuitBreakerThreshold,
		HealthCircuitBreakerReset:     cfg.Store.HealthCircuitBreakerReset,
	}, log)

	if err := pool.Connect(ctx); err != nil {
		log.Error("connect to store failed", "error", err)
		os.Exit(1)
	}
	defer pool.Disconnect(ctx)
	log.Info("connected to store")

	gw, err := storegw.NewPostgresGateway(pool, log, storegw.WithMaxErrorLen(2000))
	if err != nil {
		log.Error("build store gateway failed", "error", err)
		os.Exit(1)
	}

	mapper := buildMapper(cfg)
	filter := buildFilter(cfg, mapper.Severities)

	client, err := backend.New(backend.Config{
		Mode: backendMode(cfg),
		Aggregator: backend.AggregatorConfig{
			URL:      cfg.Backend.Aggregator.URL,
			AuthUser: cfg.Backend.Aggregator.AuthUser,
			AuthPass: cfg.Backend.Aggregator.AuthPass,
		},
		Direct: backend.DirectConfig{
			URL:             cfg.Backend.Direct.URL,
			APIKey:          cfg.Backend.Direct.APIKey,
			DefaultTeam:     cfg.Backend.Direct.DefaultTeam,
			DefaultPriority: cfg.Backend.Direct.DefaultPriority,
		},
		Retry:             backend.RetryConfig{MaxAttempts: cfg.Backend.Retry.Count, Interval: cfg.Backend.Retry.Interval},
		RequestTimeout:    cfg.Backend.RequestTimeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
	}, log)
	if err != nil {
		log.Error("build backend client failed", "error", err)
		os.Exit(1)
	}

	dedupe := buildDedupeCache(cfg, log)

	registry := metrics.New(prometheus.DefaultRegisterer)

	engine := reconcile.New(gw, client, mapper, filter, dedupe, registry, log, reconcile.Config{
		BatchSize:           cfg.Sync.BatchSize,
		ScanInterval:        cfg.Sync.ScanInterval,
		HeartbeatEnabled:    cfg.Sync.HeartbeatEnabled,
		HeartbeatInterval:   cfg.Sync.HeartbeatInterval,
		SyncOnStartup:       cfg.Sync.SyncOnStartup,
		AutoRemoveOnClear:   cfg.Suppression.AutoRemoveOnClear,
		SuppressionDuration: cfg.Suppression.DefaultDuration,
		UseSuppressionAPI:   cfg.Suppression.UseAPI,
	})
	engine.Start(ctx)

	auditRecorder := audit.New(gw)
	cleanupWorker := audit.NewCleanupWorker(gw, defaultCleanupInterval, defaultRetention, log)
	cleanupWorker.Start(ctx)

	exporter := config.NewExporter(cfg)
	reloader := config.NewReloadCoordinator(cfg, *configPath,
		func(c *config.Config) interface{} { return buildFilter(c, buildMapper(c).Severities) },
		func(f interface{}) { engine.SetFilter(f.(alarm.Filter)) },
		exporter, log)
	go watchReloadSignal(ctx, reloader, log)

	router := admin.NewRouter(admin.Config{Engine: engine, Audit: auditRecorder, Logger: log, Exporter: exporter})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("admin http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("admin http server shutdown failed", "error", err)
	}
	cleanupWorker.Stop()
	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error("engine stop failed", "error", err)
	}
	log.Info("reconciler stopped")
}

// buildMapper starts from the built-in severity table and applies the
// configured per-level overrides and static labels on top.
func buildMapper(cfg *config.Config) alarm.Mapper {
	m := alarm.NewMapper(cfg.Mapping.StaticLabels)
	for level, sev := range cfg.Mapping.SeverityByLevel {
		m.Severities[level] = sev
	}
	if cfg.Suppression.CommentTemplate != "" {
		m.CommentFormat = cfg.Suppression.CommentTemplate
	}
	return m
}

// buildFilter derives the sync allow-set from configuration, falling back
// to the package defaults when the operator leaves them unset.
func buildFilter(cfg *config.Config, severities alarm.SeverityMap) alarm.Filter {
	f := alarm.Filter{Severities: severities, Levels: map[int]bool{}}
	if len(cfg.Sync.AlarmLevels) == 0 {
		f.Levels = alarm.DefaultFilter().Levels
	} else {
		for _, lvl := range cfg.Sync.AlarmLevels {
			f.Levels[lvl] = true
		}
	}
	if len(cfg.Sync.SeverityFilter) > 0 {
		f.SeverityFilter = map[string]bool{}
		for _, sev := range cfg.Sync.SeverityFilter {
			f.SeverityFilter[sev] = true
		}
	}
	return f
}

// backendMode resolves which backend variant is active; config.Validate
// already enforces that exactly one of aggregator/direct is enabled.
func backendMode(cfg *config.Config) backend.Mode {
	if cfg.Backend.Aggregator.Enabled || cfg.Backend.Mode == config.BackendModeAggregator {
		return backend.ModeAggregator
	}
	return backend.ModeDirect
}

// watchReloadSignal applies a new config on every SIGHUP until ctx is done.
// Only the sync filter and the admin config view are hot-swapped; anything
// else requires a restart (see the ReloadCoordinator doc comment).
func watchReloadSignal(ctx context.Context, reloader *config.ReloadCoordinator, log *slog.Logger) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			if _, err := reloader.Reload(ctx); err != nil {
				log.Error("config reload failed", "error", err)
			}
		}
	}
}

// buildDedupeCache wires Redis when an address is configured, falling back
// to the in-process LRU cache otherwise.
func buildDedupeCache(cfg *config.Config, log *slog.Logger) dedupcache.Cache {
	if cfg.Redis.Addr == "" {
		return dedupcache.NewLocalCache(cfg.Redis.TTL, 4096)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info("dedupe cache backed by redis", "addr", cfg.Redis.Addr)
	return dedupcache.NewRedisCache(rdb, cfg.Redis.TTL)
}
