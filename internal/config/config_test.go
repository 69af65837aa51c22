package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.False(t, cfg.Production())
	assert.Equal(t, "database.db", cfg.SQLitePath)
	assert.Equal(t, devSecret, cfg.SecretKey)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 16, cfg.MaxUploadMB)
	assert.Equal(t, 10*time.Second, cfg.MediaTimeout)
	assert.False(t, cfg.MediaConfigured())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("MEDIA_TIMEOUT", "5s")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.MediaTimeout)
	assert.True(t, cfg.MediaConfigured())
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/merch")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "short")
	_, err = Load("")
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestLoad_DotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(".env", []byte("UPLOAD_DIR=/tmp/photos\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("UPLOAD_DIR") })

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export_concurrency: 7\nlog_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/photos", cfg.UploadDir)
	assert.Equal(t, 7, cfg.ExportConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_UPLOAD_MB", "0")

	_, err := Load("")
	assert.Error(t, err)
}
