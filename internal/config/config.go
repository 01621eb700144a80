package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/gaf-clearance/internal/gaf"
)

type AppConfig struct {
	// BackendURL is the base of the forecast and LSALT grid endpoints.
	BackendURL *url.URL

	// RefreshInterval controls how often every (period, region) forecast is refetched.
	RefreshInterval time.Duration

	// Outbound HTTP behaviour.
	HTTPTimeout        time.Duration
	UpstreamMaxRetries int

	// In-memory store retention.
	StoreMaxHistory int           // max number of forecasts per region (0 = unlimited)
	StoreMaxAge     time.Duration // max age of forecasts by validity end (0 = unlimited)

	// Regions skipped by the clearance engine.
	ExcludedRegions []gaf.Region

	EnvelopeCacheSize int

	LogLevel slog.Level
	AppEnv   string
	LogFile  string

	Port string
}

// Load reads configuration from environment with sensible defaults.
// Callers are expected to have merged any .env file beforehand.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	backend, err := url.Parse(getenvDefault("BACKEND_URL", "http://localhost:8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	if backend.Scheme != "http" && backend.Scheme != "https" || backend.Host == "" {
		return nil, fmt.Errorf("invalid BACKEND_URL: %q is not an absolute http(s) URL", backend.String())
	}
	cfg.BackendURL = backend

	// Refresh interval: default hourly, gocron schedules in whole minutes.
	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %s is shorter than one minute", interval)
	}
	cfg.RefreshInterval = interval

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	if cfg.UpstreamMaxRetries, err = getenvInt("UPSTREAM_MAX_RETRIES", 0, 0); err != nil {
		return nil, err
	}

	// Store retention.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 48, 0); err != nil {
		return nil, err
	}

	maxAge, err := time.ParseDuration(getenvDefault("STORE_MAX_AGE", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	excluded, err := loadExcludedRegions()
	if err != nil {
		return nil, err
	}
	cfg.ExcludedRegions = excluded

	if cfg.EnvelopeCacheSize, err = getenvInt("ENVELOPE_CACHE_SIZE", 64, 1); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// loadExcludedRegions distinguishes an unset variable (default NSW-W) from an
// explicitly empty one (nothing excluded).
func loadExcludedRegions() ([]gaf.Region, error) {
	raw, ok := os.LookupEnv("CLEARANCE_EXCLUDED_REGIONS")
	if !ok {
		raw = "NSW-W"
	}
	var regions []gaf.Region
	for _, code := range strings.Split(raw, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		region, err := gaf.ParseRegion(code)
		if err != nil {
			return nil, fmt.Errorf("invalid CLEARANCE_EXCLUDED_REGIONS: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvInt parses an integer variable, falling back to def when unset.
func getenvInt(key string, def, floor int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < floor {
		return 0, fmt.Errorf("invalid %s: %d is below %d", key, n, floor)
	}
	return n, nil
}
