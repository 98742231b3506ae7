package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/config"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

// Mapping helpers translate the wire config into per-component configs.
// They all validate as they map so the watch-time validator can reuse them.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapResolverConfig(cfg *config.Config) (reminder.ResolverConfig, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Reminders.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return reminder.ResolverConfig{}, fmt.Errorf("reminders.timezone: %w", err)
		}
		loc = l
	}
	return reminder.ResolverConfig{
		Location:    loc,
		DefaultHour: cfg.Reminders.DefaultHour,
		HorizonDays: cfg.Reminders.HorizonDays,
	}, nil
}

func mapServiceConfig(cfg *config.Config) (reminder.ServiceConfig, error) {
	retention, err := config.ParseDurationField("reminders.retention", cfg.Reminders.Retention)
	if err != nil {
		return reminder.ServiceConfig{}, err
	}
	spec := strings.TrimSpace(cfg.Reminders.SweepEvery)
	if spec != "" {
		// A bare Go duration is shorthand for "@every <d>".
		if d, derr := time.ParseDuration(spec); derr == nil {
			if d <= 0 {
				return reminder.ServiceConfig{}, fmt.Errorf("reminders.sweep_every: must be positive, got %q", spec)
			}
			spec = "@every " + d.String()
		}
		if _, cerr := cron.ParseStandard(spec); cerr != nil {
			return reminder.ServiceConfig{}, fmt.Errorf("reminders.sweep_every: %w", cerr)
		}
	}
	return reminder.ServiceConfig{
		Retention: retention,
		SweepSpec: spec,
	}, nil
}

func mapDeliveryConfig(cfg *config.Config) (reminder.DeliveryConfig, error) {
	sendTimeout, err := config.ParseDurationField("delivery.send_timeout", cfg.Delivery.SendTimeout)
	if err != nil {
		return reminder.DeliveryConfig{}, err
	}
	resolveTimeout, err := config.ParseDurationField("delivery.resolve_timeout", cfg.Delivery.ResolveTimeout)
	if err != nil {
		return reminder.DeliveryConfig{}, err
	}
	return reminder.DeliveryConfig{
		RatePerSec:     cfg.Delivery.RatePerSec,
		SendTimeout:    sendTimeout,
		ResolveTimeout: resolveTimeout,
	}, nil
}

func mapRouterConfig(cfg *config.Config, loc *time.Location) (router.Config, error) {
	confirmTTL, err := config.ParseDurationField("reminders.confirm_ttl", cfg.Reminders.ConfirmTTL)
	if err != nil {
		return router.Config{}, err
	}
	return router.Config{
		CommandPrefix: cfg.Reminders.CommandPrefix,
		AutoCapture:   cfg.Reminders.AutoCapture,
		ConfirmTTL:    confirmTTL,
		Owners:        cfg.Telegram.OwnerUserIDs,
		Location:      loc,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
