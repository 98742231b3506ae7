package router

import (
	"fmt"
	"strconv"
	"strings"

	"remindbot/internal/reminder"
	"remindbot/pkg/tgui"
)

// Action is the decoded form of an inline-button press. Callback data is
// parsed into one of these exactly once, at the callback boundary; handlers
// never see raw "ns:action:payload" strings.
type Action interface {
	isAction()
	// Data renders the wire form for callback_data.
	Data() string
}

// actionNS namespaces this bot's callback data so foreign buttons
// (forwarded messages, older bots in the same chat) are ignored.
const actionNS = "rem"

// CancelAction cancels one reminder.
type CancelAction struct {
	ID int64
}

// PresetAction reschedules one reminder per a named preset.
type PresetAction struct {
	ID     int64
	Preset reminder.Preset
}

// SnoozeHintAction asks for free-text reschedule instructions.
type SnoozeHintAction struct {
	ID int64
}

func (CancelAction) isAction()     {}
func (PresetAction) isAction()     {}
func (SnoozeHintAction) isAction() {}

func (a CancelAction) Data() string {
	return tgui.Data(actionNS, "cancel", strconv.FormatInt(a.ID, 10))
}

func (a PresetAction) Data() string {
	return tgui.Data(actionNS, "preset", strconv.FormatInt(a.ID, 10)+":"+string(a.Preset))
}

func (a SnoozeHintAction) Data() string {
	return tgui.Data(actionNS, "snooze", strconv.FormatInt(a.ID, 10))
}

var errUnknownAction = fmt.Errorf("unknown action")

// ParseAction decodes callback data. Data from another namespace or with a
// malformed payload returns an error; callers drop it silently.
func ParseAction(data string) (Action, error) {
	ns, action, payload := tgui.SplitData(strings.TrimSpace(data))
	if ns != actionNS {
		return nil, fmt.Errorf("%w: namespace %q", errUnknownAction, ns)
	}
	switch action {
	case "cancel":
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cancel payload %q: %w", payload, err)
		}
		return CancelAction{ID: id}, nil
	case "preset":
		idStr, name, ok := strings.Cut(payload, ":")
		if !ok {
			return nil, fmt.Errorf("preset payload %q: missing preset", payload)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("preset payload %q: %w", payload, err)
		}
		p, ok := reminder.ParsePreset(name)
		if !ok {
			return nil, fmt.Errorf("preset payload %q: unknown preset", payload)
		}
		return PresetAction{ID: id, Preset: p}, nil
	case "snooze":
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snooze payload %q: %w", payload, err)
		}
		return SnoozeHintAction{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAction, action)
	}
}
