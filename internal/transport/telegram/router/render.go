package router

import (
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	"remindbot/pkg/tgui"
)

const fireTimeFormat = "Mon, 02 Jan 2006 15:04"

var htmlOpts = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

func renderCreated(rem reminder.Reminder, loc *time.Location) string {
	return tgui.JoinH(" ",
		tgui.Raw("✅"),
		tgui.B("#"+strconv.FormatInt(rem.ID, 10)),
		tgui.Esc("will fire"),
		tgui.B(rem.FireAt.In(loc).Format(fireTimeFormat)),
	).String()
}

func renderRescheduled(rem reminder.Reminder, loc *time.Location) string {
	return tgui.JoinH(" ",
		tgui.Raw("🔁"),
		tgui.B("#"+strconv.FormatInt(rem.ID, 10)),
		tgui.Esc("moved to"),
		tgui.B(rem.FireAt.In(loc).Format(fireTimeFormat)),
	).String()
}

func renderCancelled(id int64) string {
	return "🗑 " + tgui.B("#"+strconv.FormatInt(id, 10)).String() + " cancelled"
}

func renderList(items []reminder.Reminder, loc *time.Location) string {
	if len(items) == 0 {
		return "no reminders"
	}
	lines := make([]tgui.H, 0, len(items)+1)
	lines = append(lines, tgui.B(fmt.Sprintf("reminders (%d)", len(items))))
	for _, rem := range items {
		marker := "⏳"
		if rem.State == reminder.StateFired {
			marker = "🔔"
		}
		body := tgui.TruncRunes(rem.Body, 48)
		if rem.MediaRef != "" {
			body = "📷 " + body
		}
		lines = append(lines, tgui.JoinH(" ",
			tgui.Raw(marker),
			tgui.Code("#"+strconv.FormatInt(rem.ID, 10)),
			tgui.I(rem.FireAt.In(loc).Format(fireTimeFormat)),
			tgui.Esc(body),
		))
	}
	return tgui.JoinH("\n", lines...).String()
}

func renderHelp(prefix string) string {
	p := prefix
	return tgui.JoinH("\n",
		tgui.B("remindbot"),
		tgui.Esc("delayed reminders for this chat"),
		tgui.Raw(""),
		tgui.Code(p+"remind <when> <text>"),
		tgui.Esc("  when: 30s 45m 2h 1d, a weekday name, or plain English"),
		tgui.Esc("  e.g. "+p+"remind friday pay the rent"),
		tgui.Esc("  e.g. "+p+"remind in 2 hours stand up"),
		tgui.Code(p+"list"),
		tgui.Esc("  pending and fired reminders"),
		tgui.Code(p+"cancel <id>"),
		tgui.Esc("  cancel one reminder"),
		tgui.Code(p+"reschedule <id> <when>"),
		tgui.Esc("  move one reminder (presets: later tomorrow evening weekend monday)"),
		tgui.Code(p+"cancelall"),
		tgui.Esc("  cancel everything (owners only)"),
	).String()
}

// deliveredMarkup builds the post-delivery action keyboard: cancel, the
// named presets, and a free-text snooze hint, all addressed by reminder ID.
func deliveredMarkup(id int64) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	kb.Row(
		tgui.Btn("🗑 Done", CancelAction{ID: id}.Data()),
		tgui.Btn("✍ Snooze…", SnoozeHintAction{ID: id}.Data()),
	)
	presets := reminder.Presets()
	btns := make([]tele.Btn, 0, len(presets))
	for _, p := range presets {
		btns = append(btns, tgui.Btn(string(p), PresetAction{ID: id, Preset: p}.Data()))
	}
	for i := 0; i < len(btns); i += 3 {
		end := i + 3
		if end > len(btns) {
			end = len(btns)
		}
		kb.Row(btns[i:end]...)
	}
	return kb.Markup()
}

// DeliveredOptions is installed on the delivery engine so every delivered
// reminder carries the action keyboard.
func DeliveredOptions(rem reminder.Reminder) *kit.SendOptions {
	return &kit.SendOptions{
		ParseMode:          "",
		DisablePreview:     true,
		ReplyMarkupAdapter: deliveredMarkup(rem.ID),
	}
}
