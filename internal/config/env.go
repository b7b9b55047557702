package config

import (
	"os"
	"strconv"
)

// FromEnv overlays IRCD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("IRCD_SERVER_NAME"); v != "" {
		cfg.ServerName = v
	}
	if v := os.Getenv("IRCD_TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TickIntervalMs = n
		}
	}
	if v := os.Getenv("IRCD_HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("IRCD_HISTORY_MAX_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxLines = n
		}
	}
	if v := os.Getenv("IRCD_HISTORY_MAX_AGE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxAgeSeconds = n
		}
	}
	if v := os.Getenv("IRCD_HISTORY_TRIM_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.TrimIntervalMs = n
		}
	}
	if v := os.Getenv("IRCD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("IRCD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
