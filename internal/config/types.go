package config

import (
	"errors"
	"strings"
)

// Config is the on-disk configuration (YAML or JSON).
//
// Durations are strings in Go duration syntax ("15m", "2h30m"); they are
// parsed with ParseDurationOrDefault when mapped to component configs.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Database DatabaseConfig `json:"database"`
	Watch    WatchConfig    `json:"watch"`
	Metrics  MetricsConfig  `json:"metrics"`
	Health   HealthConfig   `json:"health"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// WatchConfig controls the subscription checker.
type WatchConfig struct {
	// MinInterval is the smallest check interval a user may request.
	MinInterval string `json:"min_interval"`
	// HousekeepingInterval is how often expired subscriptions are swept.
	HousekeepingInterval string `json:"housekeeping_interval"`
	// ProbeTimeout bounds a single availability lookup.
	ProbeTimeout string `json:"probe_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

type HealthConfig struct {
	// PingURL is fetched on every housekeeping run (e.g. a healthchecks.io
	// check). Empty disables the HTTP self-ping; the systemd watchdog ping
	// is always attempted when running under systemd.
	PingURL string `json:"ping_url"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Validate checks the fields that cannot be defaulted away.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	return nil
}
