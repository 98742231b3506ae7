package reminder

import (
	"strings"
	"time"
)

// Preset is a named, deterministic reschedule target computed from "now".
type Preset string

const (
	// PresetLater is +2 days at the default hour.
	PresetLater Preset = "later"
	// PresetTomorrow is the next day at the default hour.
	PresetTomorrow Preset = "tomorrow"
	// PresetEvening is today 18:00, or tomorrow 18:00 when already past.
	PresetEvening Preset = "evening"
	// PresetWeekend is the next Saturday at the default hour (a full week
	// ahead when today is Saturday).
	PresetWeekend Preset = "weekend"
	// PresetMonday is the next Monday at the default hour (a full week
	// ahead when today is Monday).
	PresetMonday Preset = "monday"
)

const eveningHour = 18

// ParsePreset maps a preset name to its Preset. Unknown names report false;
// callers fall through to the free-text resolver.
func ParsePreset(s string) (Preset, bool) {
	switch Preset(strings.ToLower(strings.TrimSpace(s))) {
	case PresetLater:
		return PresetLater, true
	case PresetTomorrow:
		return PresetTomorrow, true
	case PresetEvening:
		return PresetEvening, true
	case PresetWeekend:
		return PresetWeekend, true
	case PresetMonday:
		return PresetMonday, true
	}
	return "", false
}

// Presets lists all named presets in display order.
func Presets() []Preset {
	return []Preset{PresetLater, PresetTomorrow, PresetEvening, PresetWeekend, PresetMonday}
}

// ResolvePreset computes the preset's absolute instant from ref, using the
// resolver's location and default hour.
func (r *Resolver) ResolvePreset(p Preset, ref time.Time) time.Time {
	ref = ref.In(r.loc)
	switch p {
	case PresetLater:
		d := ref.AddDate(0, 0, 2)
		return time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc)
	case PresetTomorrow:
		d := ref.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc)
	case PresetEvening:
		at := time.Date(ref.Year(), ref.Month(), ref.Day(), eveningHour, 0, 0, 0, r.loc)
		if !at.After(ref) {
			at = at.AddDate(0, 0, 1)
		}
		return at
	case PresetWeekend:
		return r.nextWeekday(ref, time.Saturday)
	case PresetMonday:
		return r.nextWeekday(ref, time.Monday)
	}
	// Unknown presets behave like PresetTomorrow rather than failing; the
	// boundary parses preset names before reaching here.
	d := ref.AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), r.defaultHour, 0, 0, 0, r.loc)
}
