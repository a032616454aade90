// Package admin implements the reconciler's operator-facing HTTP surface:
// health/readiness probes, Prometheus exposition, and a small set of
// sync-status and control endpoints. It talks to the reconciliation
// engine only through the narrow references passed into NewRouter — no
// singleton, no package-level engine reference.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/zmc-reconciler/internal/audit"
	"github.com/vitaliisemenov/zmc-reconciler/internal/config"
	"github.com/vitaliisemenov/zmc-reconciler/internal/reconcile"
	"github.com/vitaliisemenov/zmc-reconciler/pkg/logger"
)

// Config wires the router's dependencies.
type Config struct {
	Engine   *reconcile.Engine
	Audit    *audit.Recorder
	Logger   *slog.Logger
	Exporter *config.Exporter
}

// NewRouter builds the admin HTTP surface.
func NewRouter(cfg Config) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{cfg: cfg}

	router := mux.NewRouter()
	router.Use(logger.LoggingMiddleware(cfg.Logger))

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", h.live).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.ready).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sync/trigger", h.triggerSync).Methods(http.MethodPost)
	api.HandleFunc("/sync/alarms", h.syncAlarms).Methods(http.MethodGet)
	api.HandleFunc("/sync/logs", h.syncLogs).Methods(http.MethodGet)
	api.HandleFunc("/sync/statistics", h.syncStatistics).Methods(http.MethodGet)
	api.HandleFunc("/sync/status", h.syncStatus).Methods(http.MethodGet)
	api.HandleFunc("/admin/service/control", h.serviceControl).Methods(http.MethodPost)
	api.HandleFunc("/admin/config", h.currentConfig).Methods(http.MethodGet)

	return router
}

type handlers struct {
	cfg Config
}
