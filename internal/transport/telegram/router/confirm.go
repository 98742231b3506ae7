package router

import (
	"context"
	"sync"
	"time"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// confirmCleaner auto-deletes confirmation replies after a TTL. It rides on
// the same one-shot timer service as the reminders themselves, with its own
// ID space; pending deletions are best-effort on shutdown.
type confirmCleaner struct {
	adapter kit.Adapter
	log     logx.Logger

	sched *reminder.Scheduler

	mu   sync.Mutex
	seq  int64
	refs map[int64]kit.MessageRef
	ttl  time.Duration
}

func newConfirmCleaner(adapter kit.Adapter, log logx.Logger) *confirmCleaner {
	return &confirmCleaner{
		adapter: adapter,
		log:     log,
		sched:   reminder.NewScheduler(log.With(logx.String("comp", "confirm.cleaner"))),
		refs:    map[int64]kit.MessageRef{},
	}
}

func (c *confirmCleaner) setTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// track schedules ref for deletion after the configured TTL.
// A zero TTL disables cleanup.
func (c *confirmCleaner) track(ref kit.MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	c.mu.Lock()
	ttl := c.ttl
	if ttl <= 0 {
		c.mu.Unlock()
		return
	}
	c.seq++
	id := c.seq
	c.refs[id] = ref
	c.mu.Unlock()

	c.sched.Arm(id, time.Now().Add(ttl), c.onExpire)
}

func (c *confirmCleaner) onExpire(id int64) {
	c.mu.Lock()
	ref, ok := c.refs[id]
	delete(c.refs, id)
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.adapter.DeleteMessage(ctx, ref); err != nil {
		c.log.Debug("confirm cleanup failed",
			logx.Int64("chat_id", ref.ChatID),
			logx.Int("message_id", ref.MessageID),
			logx.Err(err))
	}
}

func (c *confirmCleaner) stop() {
	c.sched.Stop()
	c.mu.Lock()
	c.refs = map[int64]kit.MessageRef{}
	c.mu.Unlock()
}
