// Package config provides loading and environment overlay for the server
// configuration: a Default() baseline, a JSON file loader, and IRCD_*
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// ServerName is the source prefix on protocol frames this core emits.
	ServerName string `json:"serverName"`
	// TickIntervalMs is the reactor interval driving the scheduler.
	TickIntervalMs int           `json:"tickIntervalMs"`
	History        HistoryConfig `json:"history"`
	Log            LogConfig     `json:"log"`
}

// HistoryConfig captures the history cache limits and backend selection.
type HistoryConfig struct {
	// Backend selects the storage backend: "mem" or "disk".
	Backend string `json:"backend"`
	// MaxLines is the default per-key line retention.
	MaxLines int `json:"maxLines"`
	// MaxAgeSeconds is the default per-key age retention.
	MaxAgeSeconds int `json:"maxAgeSeconds"`
	// TrimIntervalMs is how often the maintenance task runs.
	TrimIntervalMs int `json:"trimIntervalMs"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// TickInterval returns the reactor interval as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// MaxAge returns the default age retention as a duration.
func (h HistoryConfig) MaxAge() time.Duration {
	return time.Duration(h.MaxAgeSeconds) * time.Second
}

// TrimInterval returns the maintenance interval as a duration.
func (h HistoryConfig) TrimInterval() time.Duration {
	return time.Duration(h.TrimIntervalMs) * time.Millisecond
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ServerName:     "irc.localhost",
		TickIntervalMs: 250,
		History: HistoryConfig{
			Backend:        "mem",
			MaxLines:       200,
			MaxAgeSeconds:  86400,
			TrimIntervalMs: 60_000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON file. An empty path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the runtime cannot honor.
func (c Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("config: serverName is required")
	}
	switch c.History.Backend {
	case "mem", "disk":
	default:
		return fmt.Errorf("config: unknown history backend %q", c.History.Backend)
	}
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("config: tickIntervalMs must be positive")
	}
	if c.History.TrimIntervalMs <= 0 {
		return fmt.Errorf("config: history.trimIntervalMs must be positive")
	}
	return nil
}
