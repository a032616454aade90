package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Exporter serves the running configuration to the admin HTTP surface:
// sanitized by default, with a version hash so a poller can tell whether
// anything changed since the last call.
type Exporter struct {
	mu       sync.RWMutex
	config   *Config
	loadedAt time.Time

	cacheMu     sync.Mutex
	cachedResp  *ConfigView
	cacheExpiry time.Time
}

// ConfigView is what the admin endpoint returns.
type ConfigView struct {
	Version  string                 `json:"version"`
	LoadedAt time.Time              `json:"loaded_at"`
	Config   map[string]interface{} `json:"config"`
}

// NewExporter wraps cfg for serving; Update replaces it when the config is
// hot-reloaded.
func NewExporter(cfg *Config) *Exporter {
	return &Exporter{config: cfg, loadedAt: time.Now()}
}

// Update swaps in a newly reloaded configuration and invalidates the cache.
func (e *Exporter) Update(cfg *Config) {
	e.mu.Lock()
	e.config = cfg
	e.loadedAt = time.Now()
	e.mu.Unlock()

	e.cacheMu.Lock()
	e.cachedResp = nil
	e.cacheMu.Unlock()
}

// View returns the sanitized current configuration, cached for 1s so a
// dashboard polling this endpoint every few seconds doesn't force a fresh
// JSON round-trip on every request.
func (e *Exporter) View() (*ConfigView, error) {
	e.cacheMu.Lock()
	if e.cachedResp != nil && time.Now().Before(e.cacheExpiry) {
		resp := e.cachedResp
		e.cacheMu.Unlock()
		return resp, nil
	}
	e.cacheMu.Unlock()

	e.mu.RLock()
	cfg := e.config
	loadedAt := e.loadedAt
	e.mu.RUnlock()

	sanitized := Sanitize(cfg)
	asJSON, err := json.Marshal(sanitized)
	if err != nil {
		return nil, fmt.Errorf("marshal sanitized config: %w", err)
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(asJSON, &configMap); err != nil {
		return nil, fmt.Errorf("unmarshal sanitized config: %w", err)
	}

	resp := &ConfigView{
		Version:  e.version(cfg),
		LoadedAt: loadedAt,
		Config:   configMap,
	}

	e.cacheMu.Lock()
	e.cachedResp = resp
	e.cacheExpiry = time.Now().Add(1 * time.Second)
	e.cacheMu.Unlock()

	return resp, nil
}

// version hashes the unsanitized config so two deployments with different
// secrets but identical tunables still report different versions.
func (e *Exporter) version(cfg *Config) string {
	asJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("error-%d", time.Now().Unix())
	}
	hash := sha256.Sum256(asJSON)
	return hex.EncodeToString(hash[:])
}
