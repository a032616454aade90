package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests.
func resetViper() {
	viper.Reset()
}

func unsetEnvKeys(keys ...string) {
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}

// writeTempYAML writes a temporary YAML file with given content and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}

func validBackendYAML() string {
	return `
backend:
  mode: aggregator
  aggregator:
    enabled: true
    url: "http://aggregator.local"
`
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT", "STORE_HOST", "APP_ENVIRONMENT")

	path := writeTempYAML(t, validBackendYAML())
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, "zmc", cfg.Store.Database)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Sync.AlarmLevels)
	assert.Equal(t, 200, cfg.Sync.BatchSize)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT", "STORE_HOST", "APP_ENVIRONMENT")

	yaml := `
app:
  environment: "production"
server:
  port: 9090
  host: "127.0.0.1"
store:
  host: "db.local"
  port: 5433
  database: "testdb"
  user: "user"
  password: "pass"
  ssl_mode: "disable"
redis:
  addr: "redis:6379"
log:
  level: "debug"
backend:
  mode: direct
  direct:
    enabled: true
    url: "http://opsgenie.local"
    api_key: "key"
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "db.local", cfg.Store.Host)
	assert.Equal(t, 5433, cfg.Store.Port)
	assert.Equal(t, "testdb", cfg.Store.Database)
	assert.Equal(t, "user", cfg.Store.User)
	assert.Equal(t, "pass", cfg.Store.Password)
	assert.Equal(t, "disable", cfg.Store.SSLMode)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	resetViper()
	yaml := validBackendYAML() + `
server:
  port: 8080
store:
  host: "file-db.local"
app:
  environment: "development"
`
	path := writeTempYAML(t, yaml)

	require.NoError(t, os.Setenv("SERVER_PORT", "9091"))
	require.NoError(t, os.Setenv("STORE_HOST", "env-db.local"))
	require.NoError(t, os.Setenv("APP_ENVIRONMENT", "production"))
	t.Cleanup(func() {
		unsetEnvKeys("SERVER_PORT", "STORE_HOST", "APP_ENVIRONMENT")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.Port, "env should override file")
	assert.Equal(t, "env-db.local", cfg.Store.Host, "env should override file")
	assert.Equal(t, "production", cfg.App.Environment, "env should override file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT")

	invalid := `
server:
  port: : invalid
`
	path := writeTempYAML(t, invalid)

	cfg, err := LoadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT")

	yaml := validBackendYAML() + `
server:
  port: -1
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.Error(t, err, "validation should fail for invalid server.port")
	assert.Nil(t, cfg)
}

func TestLoadConfig_BackendAmbiguity(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT")

	// neither backend enabled, and mode set to aggregator but
	// without a URL: aggEnabled is true via mode, so this should fail on the
	// missing aggregator URL rather than the ambiguity check.
	yaml := `
backend:
  mode: aggregator
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)

	// both enabled explicitly: ambiguous regardless of mode.
	resetViper()
	yaml = `
backend:
  mode: aggregator
  aggregator:
    enabled: true
    url: "http://aggregator.local"
  direct:
    enabled: true
    url: "http://opsgenie.local"
    api_key: "key"
`
	path = writeTempYAML(t, yaml)
	cfg, err = LoadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	assert.True(t, cfg.IsProduction())

	cfg.App.Environment = "development"
	assert.False(t, cfg.IsProduction())
}
