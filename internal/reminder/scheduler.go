package reminder

import (
	"sync"
	"time"

	logx "remindbot/pkg/logx"
)

// Scheduler owns one one-shot timer per pending reminder.
//
// Arm is an upsert: re-arming an ID atomically replaces the prior timer, so
// a reminder never has more than one outstanding timer. A version counter
// per ID makes callbacks from replaced timers no-ops, which is what makes
// disarm-then-arm effectively atomic from the caller's perspective.
type Scheduler struct {
	log logx.Logger

	mu      sync.Mutex
	seq     uint64 // global arm counter; versions are never reused
	timers  map[int64]*time.Timer
	vers    map[int64]uint64
	stopped bool
}

func NewScheduler(log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		log:    log,
		timers: map[int64]*time.Timer{},
		vers:   map[int64]uint64{},
	}
}

// Arm installs a one-shot timer that invokes onFire(id) once fireAt is
// reached. The delay is re-derived from the wall clock at arm time; a zero
// or negative delay fires as soon as scheduling permits, never silently
// dropped.
func (s *Scheduler) Arm(id int64, fireAt time.Time, onFire func(id int64)) {
	if onFire == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	s.seq++
	ver := s.seq
	s.vers[id] = ver

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.timers[id] = time.AfterFunc(delay, func() {
		// A replaced or disarmed timer must not fire: the version recorded
		// at arm time has to still be current.
		s.mu.Lock()
		if s.stopped || s.vers[id] != ver {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		delete(s.vers, id)
		s.mu.Unlock()

		onFire(id)
	})
	s.log.Debug("timer armed", logx.Int64("id", id), logx.Time("fire_at", fireAt), logx.Duration("delay", delay))
}

// Disarm cancels any pending timer for the ID. No-op if none. Disarming a
// timer that is already mid-fire does not retract the in-flight delivery;
// the version bump only stops callbacks that have not started yet.
func (s *Scheduler) Disarm(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	if _, had := s.vers[id]; had {
		delete(s.vers, id)
		ok = true
	}
	return ok
}

// DisarmAll cancels every pending timer and returns how many were pending.
func (s *Scheduler) DisarmAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.timers)
	for id, t := range s.timers {
		_ = t.Stop()
		delete(s.timers, id)
	}
	s.timers = map[int64]*time.Timer{}
	s.vers = map[int64]uint64{}
	return n
}

// Armed reports whether a timer is pending for the ID.
func (s *Scheduler) Armed(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Pending reports the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms everything and rejects further arms.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[int64]*time.Timer{}
	s.vers = map[int64]uint64{}
	s.log.Debug("scheduler stopped")
}
