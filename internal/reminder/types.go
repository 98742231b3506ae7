package reminder

import (
	"errors"
	"time"

	kit "remindbot/internal/transport"
)

// State tracks the reminder lifecycle:
//
//	Scheduled --(timer fires)--> Fired --(cancel)--> Cancelled
//	Scheduled --(cancel)--> Cancelled
//	Scheduled|Fired --(reschedule)--> Scheduled
//
// Cancelled is terminal; Fired reminders stay in the store (and stay
// reschedulable/cancellable) until explicitly cancelled or swept by the
// retention janitor.
type State string

const (
	StateScheduled State = "scheduled"
	StateFired     State = "fired"
	StateCancelled State = "cancelled"
)

// Reminder is the central entity. IDs are assigned by a monotonic counter
// and never reused, even after cancellation.
type Reminder struct {
	ID          int64
	Destination kit.ChatTarget
	Body        string
	// MediaRef is an opaque media handle (e.g. a photo file ID); empty when
	// the reminder is text-only.
	MediaRef  string
	FireAt    time.Time
	State     State
	CreatedAt time.Time
}

// Validation errors surfaced synchronously to the operation's caller.
var (
	ErrEmptyInput         = errors.New("reminder: empty time expression")
	ErrMalformedShorthand = errors.New("reminder: malformed shorthand duration")
	// ErrUnresolvableTime is kept for contract completeness; the default
	// horizon fallback makes it unreachable in practice.
	ErrUnresolvableTime = errors.New("reminder: unresolvable time expression")
	ErrNotFound         = errors.New("reminder: not found")
)

// ErrRecipientResolution marks a delivery where the recipient set itself
// could not be resolved; the whole delivery fails with zero recipients.
var ErrRecipientResolution = errors.New("reminder: recipient resolution failed")

// Outcome is the per-recipient delivery result.
type Outcome string

const (
	OutcomeSent Outcome = "sent"
	// OutcomeSentFallback means the primary (media-bearing) attempt failed
	// and the annotated text-only fallback succeeded.
	OutcomeSentFallback Outcome = "sent_fallback"
	OutcomeFailed       Outcome = "failed"
)

// RecipientResult records one recipient's outcome within a delivery.
type RecipientResult struct {
	Recipient kit.ChatTarget
	Outcome   Outcome
	Err       string
}

// DeliveryReport records the full fan-out result for one fired reminder.
// Delivery is best-effort: failures are absorbed here, never propagated.
type DeliveryReport struct {
	ReminderID  int64
	Destination kit.ChatTarget
	Results     []RecipientResult
	// Err is set when recipient resolution itself failed (zero recipients).
	Err       string
	StartedAt time.Time
	DoneAt    time.Time
}

// Sent reports how many recipients received the reminder (primary or
// fallback).
func (r DeliveryReport) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeSent || res.Outcome == OutcomeSentFallback {
			n++
		}
	}
	return n
}

// Failed reports how many recipients could not be reached at all.
func (r DeliveryReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// ReminderEvent is the bus payload for reminder lifecycle events.
type ReminderEvent struct {
	ID     int64     `json:"id"`
	ChatID int64     `json:"chat_id"`
	FireAt time.Time `json:"fire_at,omitempty"`
	State  State     `json:"state,omitempty"`
}

// DeliveryEvent is the bus payload for delivery outcomes.
type DeliveryEvent struct {
	ID         int64     `json:"id"`
	ChatID     int64     `json:"chat_id"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Fallback   int       `json:"fallback"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
	TookMS     int64     `json:"took_ms"`
}
