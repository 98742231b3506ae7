package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit log.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryEntry records the outcome of one reminder delivery.
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At         time.Time
	ReminderID int64
	ChatID     int64
	Recipients int
	Sent       int
	Fallback   int
	Failed     int
	Error      string
	TookMS     int64
}
