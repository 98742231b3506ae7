package router

import (
	"testing"

	"remindbot/internal/reminder"
)

func TestActionRoundTrip(t *testing.T) {
	t.Parallel()

	actions := []Action{
		CancelAction{ID: 12},
		PresetAction{ID: 12, Preset: reminder.PresetTomorrow},
		PresetAction{ID: 7, Preset: reminder.PresetWeekend},
		SnoozeHintAction{ID: 3},
	}
	for _, a := range actions {
		got, err := ParseAction(a.Data())
		if err != nil {
			t.Errorf("ParseAction(%q): %v", a.Data(), err)
			continue
		}
		if got != a {
			t.Errorf("ParseAction(%q) = %#v, want %#v", a.Data(), got, a)
		}
	}
}

func TestParseActionRejectsForeignAndMalformed(t *testing.T) {
	t.Parallel()

	bad := []string{
		"",
		"otherbot:cancel:1", // foreign namespace
		"rem:unknown:1",
		"rem:cancel:notanumber",
		"rem:preset:12",         // missing preset name
		"rem:preset:12:someday", // unknown preset
		"rem:snooze:x",
		"plain text",
	}
	for _, data := range bad {
		if _, err := ParseAction(data); err == nil {
			t.Errorf("ParseAction(%q) should fail", data)
		}
	}
}

func TestActionWireFormat(t *testing.T) {
	t.Parallel()

	if got := (CancelAction{ID: 12}).Data(); got != "rem:cancel:12" {
		t.Errorf("CancelAction.Data() = %q", got)
	}
	if got := (PresetAction{ID: 12, Preset: reminder.PresetTomorrow}).Data(); got != "rem:preset:12:tomorrow" {
		t.Errorf("PresetAction.Data() = %q", got)
	}
	if got := (SnoozeHintAction{ID: 12}).Data(); got != "rem:snooze:12" {
		t.Errorf("SnoozeHintAction.Data() = %q", got)
	}
}
