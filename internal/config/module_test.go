package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
store:
  driver: postgres
  dsn: postgres://file
workflow:
  idempotency: upsert
  concurrency: 8
`), 0o600))
	t.Setenv("APP_STORE_DSN", "postgres://env")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://env", cfg.Store.DSN)
	assert.Equal(t, IdempotencyUpsert, cfg.Workflow.Idempotency)
	assert.Equal(t, 8, cfg.Workflow.Concurrency)
	assert.Equal(t, 200, cfg.Workflow.ActivePageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, "collector:4317", cfg.Otel.Endpoint)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "store:\n  driver: postgres\n",
		"unknown driver":       "store:\n  driver: sqlite\n",
		"unknown idempotency":  "workflow:\n  idempotency: lock\n",
		"bad yaml":             "server: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
