package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/eventbus"
	"remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// ServiceConfig controls lifecycle behavior.
type ServiceConfig struct {
	// Retention removes Fired reminders this long after their fire instant.
	// Zero keeps fired reminders until explicitly cancelled.
	Retention time.Duration
	// SweepSpec is the janitor cadence (cron spec, default "@every 1h").
	SweepSpec string
}

// Service is the lifecycle controller: the single entry point for creating,
// listing, cancelling and rescheduling reminders. It owns the hand-off from
// a timer callback to the delivery engine.
//
// Concurrency: individual operations run under a shared read lock so they
// interleave freely; CancelAll takes the write lock, so a create observed
// before it completes or starts strictly after, never interleaved.
type Service struct {
	resolver *Resolver
	store    *Store
	sched    *Scheduler
	delivery *Delivery
	log      logx.Logger
	bus      eventbus.Bus
	sup      *supervisor.Supervisor

	opMu sync.RWMutex

	cfgMu sync.Mutex
	cfg   ServiceConfig
	cron  *cron.Cron
}

func NewService(cfg ServiceConfig, resolver *Resolver, store *Store, sched *Scheduler, delivery *Delivery, log logx.Logger, bus eventbus.Bus, sup *supervisor.Supervisor) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		resolver: resolver,
		store:    store,
		sched:    sched,
		delivery: delivery,
		log:      log,
		bus:      bus,
		sup:      sup,
	}
	s.Apply(cfg)
	return s
}

// SetSupervisor installs the goroutine supervisor used for delivery
// hand-off. Call before Start; safe to swap between runs.
func (s *Service) SetSupervisor(sup *supervisor.Supervisor) {
	s.cfgMu.Lock()
	s.sup = sup
	s.cfgMu.Unlock()
}

// SetResolver swaps the time resolver, for config hot reload (timezone or
// defaulting changes). Existing reminders keep their resolved instants.
func (s *Service) SetResolver(r *Resolver) {
	s.opMu.Lock()
	s.resolver = r
	s.opMu.Unlock()
}

// Apply updates lifecycle knobs; safe during config hot reload. The janitor
// reads the current retention on every sweep, so changing it does not
// require restarting the cron entry.
func (s *Service) Apply(cfg ServiceConfig) {
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 1h"
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// Start launches the retention janitor. Safe to call with a zero retention;
// the sweep just no-ops until one is configured.
func (s *Service) Start() error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.SweepSpec, s.sweepFired); err != nil {
		return fmt.Errorf("reminder: janitor spec %q: %w", s.cfg.SweepSpec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the janitor and disarms every pending timer. In-flight
// deliveries are not retracted; the caller drains them via the supervisor.
func (s *Service) Stop() {
	s.cfgMu.Lock()
	c := s.cron
	s.cron = nil
	s.cfgMu.Unlock()
	if c != nil {
		ctx := c.Stop()
		<-ctx.Done()
	}
	s.sched.Stop()
}

// Create resolves the time expression against now and registers a new
// reminder. The returned reminder carries the assigned ID and resolved
// fire instant.
func (s *Service) Create(dest kit.ChatTarget, timeExpr, body, mediaRef string) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()

	fireAt, _, err := s.resolver.Resolve(timeExpr, time.Now())
	if err != nil {
		return Reminder{}, err
	}
	return s.createAt(dest, fireAt, body, mediaRef), nil
}

// CreateFromText splits a command tail like "friday pay the rent" into the
// schedule and the body, then registers the reminder.
func (s *Service) CreateFromText(dest kit.ChatTarget, text, mediaRef string) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()

	fireAt, body, err := s.resolver.ExtractSchedule(text, time.Now())
	if err != nil {
		return Reminder{}, err
	}
	return s.createAt(dest, fireAt, body, mediaRef), nil
}

// CreateAt registers a reminder at an already-resolved instant (presets,
// channel auto-capture).
func (s *Service) CreateAt(dest kit.ChatTarget, fireAt time.Time, body, mediaRef string) Reminder {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	return s.createAt(dest, fireAt, body, mediaRef)
}

func (s *Service) createAt(dest kit.ChatTarget, fireAt time.Time, body, mediaRef string) Reminder {
	rem := s.store.Create(dest, body, fireAt, mediaRef)
	s.sched.Arm(rem.ID, rem.FireAt, s.onFire)
	s.log.Info("reminder created",
		logx.Int64("id", rem.ID),
		logx.Int64("chat_id", dest.ChatID),
		logx.Time("fire_at", rem.FireAt))
	s.publish(eventbus.TypeReminderCreated, rem)
	return rem
}

// Cancel removes the reminder and its timer, in any state. The removed
// record is returned with State set to Cancelled.
func (s *Service) Cancel(id int64) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()

	rem, err := s.store.Delete(id)
	if err != nil {
		return Reminder{}, err
	}
	s.sched.Disarm(id)
	rem.State = StateCancelled
	s.log.Info("reminder cancelled", logx.Int64("id", id))
	s.publish(eventbus.TypeReminderCancelled, rem)
	return rem, nil
}

// CancelAll removes every reminder and disarms every timer. It returns how
// many reminders were removed.
func (s *Service) CancelAll() int {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.sched.DisarmAll()
	removed := s.store.Clear()
	for _, rem := range removed {
		rem.State = StateCancelled
		s.publish(eventbus.TypeReminderCancelled, rem)
	}
	s.log.Info("all reminders cancelled", logx.Int("count", len(removed)))
	return len(removed)
}

// Reschedule moves an existing reminder (Scheduled or Fired) to a new fire
// instant. The expression may be a preset name or any free-form time
// expression; presets win when both would match.
func (s *Service) Reschedule(id int64, expr string) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()

	now := time.Now()
	var fireAt time.Time
	if p, ok := ParsePreset(expr); ok {
		fireAt = s.resolver.ResolvePreset(p, now)
	} else {
		var err error
		fireAt, _, err = s.resolver.Resolve(expr, now)
		if err != nil {
			return Reminder{}, err
		}
	}
	return s.rescheduleAt(id, fireAt)
}

// ReschedulePreset moves an existing reminder per a named preset.
func (s *Service) ReschedulePreset(id int64, p Preset) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	return s.rescheduleAt(id, s.resolver.ResolvePreset(p, time.Now()))
}

// RescheduleAt moves an existing reminder to an explicit instant. Re-arming
// replaces any pending timer, so the reminder never has two.
func (s *Service) RescheduleAt(id int64, fireAt time.Time) (Reminder, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	return s.rescheduleAt(id, fireAt)
}

func (s *Service) rescheduleAt(id int64, fireAt time.Time) (Reminder, error) {
	rem, err := s.store.UpdateFireAt(id, fireAt)
	if err != nil {
		return Reminder{}, err
	}
	s.sched.Arm(id, fireAt, s.onFire)
	s.log.Info("reminder rescheduled", logx.Int64("id", id), logx.Time("fire_at", fireAt))
	s.publish(eventbus.TypeReminderRescheduled, rem)
	return rem, nil
}

// List returns all live reminders (Scheduled and Fired) in creation order.
func (s *Service) List() []Reminder {
	return s.store.List()
}

// Get returns one reminder by ID.
func (s *Service) Get(id int64) (Reminder, bool) {
	return s.store.Get(id)
}

// onFire runs on the timer goroutine. It transitions the reminder to Fired
// and hands the delivery off to a supervised goroutine so slow sends never
// back up the timer path.
func (s *Service) onFire(id int64) {
	rem, err := s.store.MarkFired(id)
	if err != nil {
		// Cancelled between timer fire and this lookup. Benign.
		s.log.Debug("fired reminder vanished", logx.Int64("id", id))
		return
	}
	s.log.Info("reminder fired", logx.Int64("id", id), logx.Int64("chat_id", rem.Destination.ChatID))
	s.publish(eventbus.TypeReminderFired, rem)

	s.cfgMu.Lock()
	sup := s.sup
	s.cfgMu.Unlock()

	if sup != nil {
		sup.Go0(fmt.Sprintf("deliver-%d", id), func(ctx context.Context) {
			s.delivery.Deliver(ctx, rem)
		})
		return
	}
	go s.delivery.Deliver(context.Background(), rem)
}

// sweepFired drops Fired reminders whose fire instant is older than the
// configured retention. Scheduled reminders are never swept.
func (s *Service) sweepFired() {
	s.cfgMu.Lock()
	retention := s.cfg.Retention
	s.cfgMu.Unlock()
	if retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-retention)
	n := 0
	for _, rem := range s.store.List() {
		if rem.State == StateFired && rem.FireAt.Before(cutoff) {
			if _, err := s.store.Delete(rem.ID); err == nil {
				n++
			}
		}
	}
	if n > 0 {
		s.log.Info("fired reminders swept", logx.Int("count", n))
	}
}

func (s *Service) publish(typ string, rem Reminder) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ReminderEvent{
		ID:     rem.ID,
		ChatID: rem.Destination.ChatID,
		FireAt: rem.FireAt,
		State:  rem.State,
	}})
}
