package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.App.WebPort)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Jobs.ReconcileInterval)
	assert.Equal(t, 120, cfg.Limits.ProgressPerMinute)
	assert.False(t, cfg.Jobs.ReconcileFix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  web_port: 8080
auth:
  jwt_secret: "from-file"
jobs:
  reconcile_interval: 15m
`), 0644))
	t.Setenv("APP_AUTH__JWT_SECRET", "from-env")
	t.Setenv("APP_LOG__FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.WebPort)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15*time.Minute, cfg.Jobs.ReconcileInterval)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("/tmp/x.db")
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "foreign_keys(1)")
}
