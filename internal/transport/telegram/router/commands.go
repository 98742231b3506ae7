package router

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
)

func (r *Router) routeMessage(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	cfg := r.config()

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, cfg.CommandPrefix) {
		return
	}
	word, tail, _ := strings.Cut(strings.TrimPrefix(text, cfg.CommandPrefix), " ")
	// strip the @botname suffix Telegram appends in groups
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	tail = strings.TrimSpace(tail)

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Command: word,
		Args:    tail,
	}

	var h HandlerFunc
	switch word {
	case "start", "help":
		h = r.handleHelp
	case "remind":
		h = r.handleRemind
	case "list":
		h = r.handleList
	case "cancel":
		h = r.handleCancel
	case "reschedule", "snooze":
		h = r.handleReschedule
	case "cancelall":
		if !isOwner(msg.FromID, cfg.Owners) {
			_, _ = r.adapter.SendText(root, req.Chat, "unauthorized", nil)
			return
		}
		h = r.handleCancelAll
	default:
		_, _ = r.adapter.SendText(root, req.Chat, "unknown command, try "+cfg.CommandPrefix+"help", nil)
		return
	}
	r.enqueue(root, req, h)
}

// routeChannelPost converts channel posts into reminders: posts carrying
// the remind command always, every post when auto-capture is on.
func (r *Router) routeChannelPost(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	cfg := r.config()

	text := strings.TrimSpace(msg.Text)
	cmd := cfg.CommandPrefix + "remind"
	switch {
	case strings.HasPrefix(text, cmd):
		tail := strings.TrimSpace(strings.TrimPrefix(text, cmd))
		req := &Request{
			Update:  up,
			Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
			Command: "remind",
			Args:    tail,
		}
		r.enqueue(root, req, r.handleRemind)
	case cfg.AutoCapture && text != "":
		// The whole post is both the expression and the body; the resolver's
		// fallback horizon guarantees a fire instant.
		req := &Request{
			Update:  up,
			Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
			Command: "capture",
			Args:    text,
		}
		r.enqueue(root, req, r.handleRemind)
	}
}

func (r *Router) routeCallback(root context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	act, err := ParseAction(cb.Data)
	if err != nil {
		// Foreign or stale button; dismiss the spinner and move on.
		_ = r.adapter.AnswerCallback(root, cb.ID, "")
		return
	}

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Command: "cb:" + strings.SplitN(cb.Data, ":", 3)[1],
		Action:  act,
	}
	r.enqueue(root, req, func(ctx context.Context, req *Request) error {
		err := r.handleAction(ctx, req)
		// best-effort to stop the "loading" UI
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return err
	})
}

func (r *Router) handleHelp(ctx context.Context, req *Request) error {
	cfg := r.config()
	_, err := r.adapter.SendText(ctx, req.Chat, renderHelp(cfg.CommandPrefix), htmlOpts)
	return err
}

func (r *Router) handleRemind(ctx context.Context, req *Request) error {
	cfg := r.config()
	if strings.TrimSpace(req.Args) == "" {
		return r.reply(ctx, req, "usage: "+cfg.CommandPrefix+"remind <when> <text>")
	}

	mediaRef := ""
	if req.Update.Message != nil {
		mediaRef = req.Update.Message.MediaRef
	}

	rem, err := r.svc.CreateFromText(req.Chat, req.Args, mediaRef)
	if err != nil {
		return r.replyResolveErr(ctx, req, err)
	}
	return r.reply(ctx, req, renderCreated(rem, cfg.Location))
}

func (r *Router) handleList(ctx context.Context, req *Request) error {
	cfg := r.config()
	items := r.svc.List()
	_, err := r.adapter.SendText(ctx, req.Chat, renderList(items, cfg.Location), htmlOpts)
	return err
}

func (r *Router) handleCancel(ctx context.Context, req *Request) error {
	cfg := r.config()
	id, err := strconv.ParseInt(strings.TrimSpace(req.Args), 10, 64)
	if err != nil {
		return r.reply(ctx, req, "usage: "+cfg.CommandPrefix+"cancel <id>")
	}
	if _, err := r.svc.Cancel(id); err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			return r.reply(ctx, req, "no reminder #"+strconv.FormatInt(id, 10))
		}
		return err
	}
	return r.reply(ctx, req, renderCancelled(id))
}

func (r *Router) handleReschedule(ctx context.Context, req *Request) error {
	cfg := r.config()
	idStr, when, _ := strings.Cut(strings.TrimSpace(req.Args), " ")
	id, err := strconv.ParseInt(idStr, 10, 64)
	when = strings.TrimSpace(when)
	if err != nil || when == "" {
		return r.reply(ctx, req, "usage: "+cfg.CommandPrefix+"reschedule <id> <when>")
	}
	rem, err := r.svc.Reschedule(id, when)
	if err != nil {
		switch {
		case errors.Is(err, reminder.ErrNotFound):
			return r.reply(ctx, req, "no reminder #"+idStr)
		case errors.Is(err, reminder.ErrEmptyInput), errors.Is(err, reminder.ErrMalformedShorthand):
			return r.replyResolveErr(ctx, req, err)
		}
		return err
	}
	return r.reply(ctx, req, renderRescheduled(rem, cfg.Location))
}

func (r *Router) handleCancelAll(ctx context.Context, req *Request) error {
	n := r.svc.CancelAll()
	return r.reply(ctx, req, "🗑 cancelled "+strconv.Itoa(n)+" reminder(s)")
}

func (r *Router) handleAction(ctx context.Context, req *Request) error {
	cfg := r.config()
	switch act := req.Action.(type) {
	case CancelAction:
		if _, err := r.svc.Cancel(act.ID); err != nil {
			if errors.Is(err, reminder.ErrNotFound) {
				return r.reply(ctx, req, "already gone")
			}
			return err
		}
		return r.reply(ctx, req, renderCancelled(act.ID))
	case PresetAction:
		rem, err := r.svc.ReschedulePreset(act.ID, act.Preset)
		if err != nil {
			if errors.Is(err, reminder.ErrNotFound) {
				return r.reply(ctx, req, "already gone")
			}
			return err
		}
		return r.reply(ctx, req, renderRescheduled(rem, cfg.Location))
	case SnoozeHintAction:
		return r.reply(ctx, req,
			"reply with "+cfg.CommandPrefix+"remind-style timing to move it, e.g. "+
				cfg.CommandPrefix+"reschedule "+strconv.FormatInt(act.ID, 10)+" tomorrow")
	default:
		return nil
	}
}

// reply sends a confirmation and schedules its auto-deletion.
func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	ref, err := r.adapter.SendText(ctx, req.Chat, text, htmlOpts)
	if err != nil {
		return err
	}
	r.confirm.track(ref)
	return nil
}

func (r *Router) replyResolveErr(ctx context.Context, req *Request, err error) error {
	cfg := r.config()
	switch {
	case errors.Is(err, reminder.ErrEmptyInput):
		return r.reply(ctx, req, "usage: "+cfg.CommandPrefix+"remind <when> <text>")
	case errors.Is(err, reminder.ErrMalformedShorthand):
		return r.reply(ctx, req, "bad duration, use e.g. 30s, 45m, 2h, 1d")
	default:
		return err
	}
}
