package config

import (
	"fmt"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs gates operator-grade commands (/cancelall). Empty means
	// nobody may run them.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// GroupLog is the chat that receives forwarded log records when the
	// telegram log sink is enabled ("@username" or a numeric chat ID).
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig controls time resolution and lifecycle behavior.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - timezone: system local
//   - default_hour: 10
//   - horizon_days: 2
//   - command_prefix: "/"
//   - retention: "0s" (fired reminders are kept until cancelled)
//   - confirm_ttl: "0s" (confirmation messages are not auto-deleted)
type RemindersConfig struct {
	Timezone    string `json:"timezone,omitempty"`
	DefaultHour int    `json:"default_hour,omitempty"`
	HorizonDays int    `json:"horizon_days,omitempty"`

	CommandPrefix string `json:"command_prefix,omitempty"`
	// AutoCapture converts every channel post into a reminder, not just
	// posts carrying the command prefix.
	AutoCapture bool `json:"auto_capture,omitempty"`

	Retention string `json:"retention,omitempty"`
	// SweepEvery is the janitor cadence; only meaningful with a retention.
	SweepEvery string `json:"sweep_every,omitempty"`
	ConfirmTTL string `json:"confirm_ttl,omitempty"`
}

// DeliveryConfig controls the fan-out engine.
type DeliveryConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// SendTimeout / ResolveTimeout are Go duration strings.
	SendTimeout    string `json:"send_timeout,omitempty"`
	ResolveTimeout string `json:"resolve_timeout,omitempty"`
}

// StorageConfig controls the optional delivery audit log.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./remindbot_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate checks invariants that strict decoding cannot: required fields,
// duration syntax, timezone resolvability. It is also installed as the
// watch-time validator so a bad edit never replaces a good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if tz := cfg.Reminders.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("reminders.timezone: %w", err)
		}
	}
	if h := cfg.Reminders.DefaultHour; h < 0 || h > 23 {
		return fmt.Errorf("reminders.default_hour: must be 0..23, got %d", h)
	}
	if d := cfg.Reminders.HorizonDays; d < 0 {
		return fmt.Errorf("reminders.horizon_days: must be >= 0, got %d", d)
	}
	for _, f := range []struct{ path, raw string }{
		{"reminders.retention", cfg.Reminders.Retention},
		{"reminders.confirm_ttl", cfg.Reminders.ConfirmTTL},
		{"delivery.send_timeout", cfg.Delivery.SendTimeout},
		{"delivery.resolve_timeout", cfg.Delivery.ResolveTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if s := cfg.Storage; s != nil {
		switch s.Driver {
		case "", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
