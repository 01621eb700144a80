package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/gaf-clearance/internal/gaf"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"BACKEND_URL", "PORT", "REFRESH_INTERVAL", "HTTP_TIMEOUT", "UPSTREAM_MAX_RETRIES",
		"STORE_MAX_HISTORY", "STORE_MAX_AGE", "ENVELOPE_CACHE_SIZE",
		"LOG_LEVEL", "APP_ENV", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLEARANCE_EXCLUDED_REGIONS", "")
	require.NoError(t, os.Unsetenv("CLEARANCE_EXCLUDED_REGIONS"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BackendURL.String())
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.UpstreamMaxRetries)
	assert.Equal(t, 48, cfg.StoreMaxHistory)
	assert.Equal(t, time.Duration(0), cfg.StoreMaxAge)
	assert.Equal(t, 64, cfg.EnvelopeCacheSize)
	assert.Equal(t, []gaf.Region{"NSW-W"}, cfg.ExcludedRegions)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://gaf.example.org/base")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("UPSTREAM_MAX_RETRIES", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("CLEARANCE_EXCLUDED_REGIONS", "tas, VIC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gaf.example.org", cfg.BackendURL.Host)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 2, cfg.UpstreamMaxRetries)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, []gaf.Region{"TAS", "VIC"}, cfg.ExcludedRegions)
}

func TestExcludedRegions(t *testing.T) {
	clearEnv(t)

	t.Run("explicitly empty disables exclusion", func(t *testing.T) {
		t.Setenv("CLEARANCE_EXCLUDED_REGIONS", "")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.ExcludedRegions)
	})

	t.Run("unknown region is rejected", func(t *testing.T) {
		t.Setenv("CLEARANCE_EXCLUDED_REGIONS", "NSW-W,ATLANTIS")
		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, gaf.ErrUnknownRegion)
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"BACKEND_URL", "localhost:8080"},
		{"REFRESH_INTERVAL", "30s"},
		{"HTTP_TIMEOUT", "soon"},
		{"UPSTREAM_MAX_RETRIES", "-1"},
		{"UPSTREAM_MAX_RETRIES", "three"},
		{"STORE_MAX_HISTORY", "-5"},
		{"STORE_MAX_HISTORY", "many"},
		{"STORE_MAX_AGE", "a day"},
		{"ENVELOPE_CACHE_SIZE", "-1"},
		{"ENVELOPE_CACHE_SIZE", "0"},
		{"ENVELOPE_CACHE_SIZE", "lots"},
		{"LOG_LEVEL", "verbose"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid "+tc.key)
		})
	}
}

func TestLoadAcceptsZeroRetriesAndHistory(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPSTREAM_MAX_RETRIES", "0")
	t.Setenv("STORE_MAX_HISTORY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.UpstreamMaxRetries)
	assert.Zero(t, cfg.StoreMaxHistory, "zero keeps unlimited history")
}
