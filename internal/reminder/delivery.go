package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// DeliveryConfig controls the fan-out engine.
type DeliveryConfig struct {
	// RatePerSec bounds outbound sends across all recipients (default 10).
	RatePerSec int
	// SendTimeout bounds each individual send call (default 10s).
	SendTimeout time.Duration
	// ResolveTimeout bounds recipient-set resolution (default 5s).
	ResolveTimeout time.Duration
}

// OptionsFunc lets the surrounding system attach per-reminder send options
// (e.g. the post-delivery action keyboard) without the engine knowing
// transport-specific markup types.
type OptionsFunc func(rem Reminder) *kit.SendOptions

// Delivery fans a fired reminder out to its recipient set.
//
// Recipients are resolved at fire time, attempted independently and
// concurrently, and every recipient gets at most two attempts: the primary
// send (with media when present) and one annotated text-only fallback.
// Failure for one recipient never blocks the others, and the engine always
// waits for every recipient before returning its report.
type Delivery struct {
	sender   kit.Adapter
	resolver kit.RecipientResolver
	log      logx.Logger
	bus      eventbus.Bus
	options  OptionsFunc

	mu      sync.Mutex
	cfg     DeliveryConfig
	limiter *rate.Limiter
}

func NewDelivery(cfg DeliveryConfig, sender kit.Adapter, resolver kit.RecipientResolver, log logx.Logger, bus eventbus.Bus) *Delivery {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Delivery{sender: sender, resolver: resolver, log: log, bus: bus}
	d.Apply(cfg)
	return d
}

// SetOptions installs the per-reminder send option hook.
func (d *Delivery) SetOptions(fn OptionsFunc) {
	d.mu.Lock()
	d.options = fn
	d.mu.Unlock()
}

// Apply updates delivery knobs; safe during config hot reload.
func (d *Delivery) Apply(cfg DeliveryConfig) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 5 * time.Second
	}
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.mu.Unlock()
}

const fallbackNote = "(attachment could not be delivered)"

// Deliver resolves the recipient set for the reminder's destination and
// attempts delivery to each recipient. It never returns an error: all
// failure modes degrade to a recorded outcome in the report.
func (d *Delivery) Deliver(ctx context.Context, rem Reminder) DeliveryReport {
	d.mu.Lock()
	cfg := d.cfg
	lim := d.limiter
	optFn := d.options
	d.mu.Unlock()

	report := DeliveryReport{
		ReminderID:  rem.ID,
		Destination: rem.Destination,
		StartedAt:   time.Now(),
	}

	rctx, cancel := context.WithTimeout(ctx, cfg.ResolveTimeout)
	recipients, err := d.resolver.ResolveRecipients(rctx, rem.Destination)
	cancel()
	if err != nil {
		// Resolution failure fails the whole delivery with zero recipients.
		// Logged, not retried.
		report.Err = fmt.Errorf("%w: %v", ErrRecipientResolution, err).Error()
		report.DoneAt = time.Now()
		d.log.Warn("recipient resolution failed",
			logx.Int64("reminder_id", rem.ID),
			logx.Int64("chat_id", rem.Destination.ChatID),
			logx.Err(err))
		d.publish(eventbus.TypeDeliveryFailed, rem, report)
		return report
	}

	var opt *kit.SendOptions
	if optFn != nil {
		opt = optFn(rem)
	}
	text := renderReminderText(rem)

	// One goroutine per recipient; concurrency is bounded by the recipient
	// set size and the shared rate limiter.
	results := make([]RecipientResult, len(recipients))
	var wg sync.WaitGroup
	for i, rcpt := range recipients {
		wg.Add(1)
		go func(i int, rcpt kit.ChatTarget) {
			defer wg.Done()
			results[i] = d.deliverOne(ctx, cfg, lim, rem, rcpt, text, opt)
		}(i, rcpt)
	}
	wg.Wait()

	report.Results = results
	report.DoneAt = time.Now()

	d.log.Info("reminder delivered",
		logx.Int64("reminder_id", rem.ID),
		logx.Int("recipients", len(results)),
		logx.Int("sent", report.Sent()),
		logx.Int("failed", report.Failed()),
		logx.Duration("took", report.DoneAt.Sub(report.StartedAt)))
	d.publish(eventbus.TypeDeliveryDone, rem, report)
	return report
}

func (d *Delivery) deliverOne(ctx context.Context, cfg DeliveryConfig, lim *rate.Limiter, rem Reminder, rcpt kit.ChatTarget, text string, opt *kit.SendOptions) RecipientResult {
	res := RecipientResult{Recipient: rcpt}

	primaryErr := d.send(ctx, cfg, lim, rem, rcpt, text, opt, true)
	if primaryErr == nil {
		res.Outcome = OutcomeSent
		return res
	}

	// Single text-only fallback with an explicit annotation. No backoff,
	// no further retries.
	fallbackText := text
	if rem.MediaRef != "" {
		fallbackText = text + "\n" + fallbackNote
	}
	if err := d.send(ctx, cfg, lim, rem, rcpt, fallbackText, opt, false); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err.Error()
		d.log.Warn("recipient delivery failed",
			logx.Int64("reminder_id", rem.ID),
			logx.Int64("recipient", rcpt.ChatID),
			logx.Any("primary_err", primaryErr),
			logx.Err(err))
		return res
	}

	res.Outcome = OutcomeSentFallback
	return res
}

func (d *Delivery) send(ctx context.Context, cfg DeliveryConfig, lim *rate.Limiter, rem Reminder, rcpt kit.ChatTarget, text string, opt *kit.SendOptions, primary bool) error {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	if primary && rem.MediaRef != "" {
		_, err := d.sender.SendMedia(sctx, rcpt, rem.MediaRef, text, opt)
		return err
	}
	_, err := d.sender.SendText(sctx, rcpt, text, opt)
	return err
}

func (d *Delivery) publish(typ string, rem Reminder, report DeliveryReport) {
	if d.bus == nil {
		return
	}
	fallback := 0
	for _, r := range report.Results {
		if r.Outcome == OutcomeSentFallback {
			fallback++
		}
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: DeliveryEvent{
		ID:         rem.ID,
		ChatID:     rem.Destination.ChatID,
		Recipients: len(report.Results),
		Sent:       report.Sent(),
		Fallback:   fallback,
		Failed:     report.Failed(),
		Error:      report.Err,
		At:         report.DoneAt,
		TookMS:     report.DoneAt.Sub(report.StartedAt).Milliseconds(),
	}})
}

func renderReminderText(rem Reminder) string {
	return "⏰ REMINDER: " + rem.Body
}
