// Package config loads the bot's configuration.
//
// Required settings (token, database path, administrator identity) come
// from the environment and are validated fail-fast at startup. Operational
// tunables (logging, broadcast pool, maintenance schedules) live in an
// optional YAML/JSON file that is hot-reloaded while the bot runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvToken    = "BOT_TOKEN"
	EnvDatabase = "DATABASE_PATH"
	EnvAdminID  = "ADMIN_ID"
)

// Config carries the required, environment-sourced settings.
type Config struct {
	Token        string
	DatabasePath string
	AdminID      int64
}

// FromEnv reads the required settings. Any missing value is fatal;
// an admin id of zero counts as missing.
func FromEnv() (*Config, error) {
	// A .env file, if present, supplies defaults without overriding the
	// real environment.
	_ = godotenv.Load()

	cfg := &Config{
		Token:        strings.TrimSpace(os.Getenv(EnvToken)),
		DatabasePath: strings.TrimSpace(os.Getenv(EnvDatabase)),
	}

	if raw := strings.TrimSpace(os.Getenv(EnvAdminID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: not an integer: %q", EnvAdminID, raw)
		}
		cfg.AdminID = id
	}

	var missing []string
	if cfg.Token == "" {
		missing = append(missing, EnvToken)
	}
	if cfg.DatabasePath == "" {
		missing = append(missing, EnvDatabase)
	}
	if cfg.AdminID == 0 {
		missing = append(missing, EnvAdminID)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Tunables are the hot-reloadable operational settings.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Tunables struct {
	Logging     LoggingTunables     `json:"logging"`
	Telegram    TelegramTunables    `json:"telegram"`
	Broadcast   BroadcastTunables   `json:"broadcast"`
	Maintenance MaintenanceTunables `json:"maintenance"`
}

type LoggingTunables struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type TelegramTunables struct {
	// PollTimeout is the long-poll timeout, a Go duration string.
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type BroadcastTunables struct {
	Workers    int `json:"workers,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// MaintenanceTunables control the cron jobs. Schedules are cron specs.
type MaintenanceTunables struct {
	// LogRetention is how long broadcast log rows are kept.
	LogRetention string `json:"log_retention,omitempty"`
	// PruneSchedule triggers the broadcast-log prune.
	PruneSchedule string `json:"prune_schedule,omitempty"`
	// StatsSchedule sends the admin a daily stats digest ("" disables).
	StatsSchedule string `json:"stats_schedule,omitempty"`
}

// DefaultTunables returns the settings used when no tunables file exists.
func DefaultTunables() *Tunables {
	console := true
	return &Tunables{
		Logging:     LoggingTunables{Level: "info", Console: &console},
		Telegram:    TelegramTunables{PollTimeout: "10s"},
		Broadcast:   BroadcastTunables{Workers: 4, RatePerSec: 25},
		Maintenance: MaintenanceTunables{LogRetention: "720h", PruneSchedule: "0 4 * * *"},
	}
}

// ConsoleEnabled resolves the tristate console flag (default on).
func (t LoggingTunables) ConsoleEnabled() bool {
	if t.Console == nil {
		return true
	}
	return *t.Console
}

// ParseDurationField parses a Go duration string, falling back to def when
// the field is empty.
func ParseDurationField(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", name, raw)
	}
	return d, nil
}
