package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, BackendSQL, cfg.Storage.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "pencil.db", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 16, cfg.WorkerPool.QueueSize)
	assert.Equal(t, 3, cfg.Events.DefaultBestLimit)
	assert.Equal(t, 50, cfg.Events.MaxBestLimit)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerPool.Size)
	assert.Equal(t, 64, cfg.WorkerPool.QueueSize)
	assert.Equal(t, "pencil:event:", cfg.Redis.KeyPrefix)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: s3\n"))
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Load(writeConfig(t, "database:\n  driver: mysql\n"))
	assert.ErrorContains(t, err, "unknown database driver")

	_, err = Load(writeConfig(t, "server: [\n"))
	assert.Error(t, err)
}
