package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CONSOLE_DEBOUNCE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 800*time.Millisecond, cfg.Console.Debounce)
	assert.Equal(t, []string{"image/jpeg", "image/png"}, cfg.Images.AllowedMIMEs)
	assert.Equal(t, 30*time.Second, cfg.Batches.LockTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "GCS")
	t.Setenv("CACHE_RECORDS_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://console.example.com, ,https://ops.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverGCS, cfg.Storage.Driver)
	assert.Equal(t, 90*time.Second, cfg.Cache.RecordsTTL)
	assert.Equal(t, []string{"https://console.example.com", "https://ops.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
