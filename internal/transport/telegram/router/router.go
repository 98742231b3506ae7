package router

import (
	"context"
	"math/rand"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Config is the router's hot-applyable slice of the app config.
type Config struct {
	CommandPrefix string
	AutoCapture   bool
	ConfirmTTL    time.Duration
	Owners        []int64
	Location      *time.Location
}

// Request carries one decoded update through the middleware chain.
type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    string // raw command tail, untokenized
	Action  Action // set for callback requests
	ReqID   string
	Logger  logx.Logger
}

// Router turns updates into reminder operations: slash commands from
// messages, the Action sum type from callbacks, and channel-post intake.
// Handlers run on a bounded worker pool with panic recovery.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	svc     *reminder.Service
	confirm *confirmCleaner

	mu  sync.RWMutex
	cfg Config

	jobs    chan func()
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
}

func New(cfg Config, adapter kit.Adapter, svc *reminder.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		log:     log,
		adapter: adapter,
		svc:     svc,
		confirm: newConfirmCleaner(adapter, log),
		jobs:    make(chan func(), 256),
	}
	r.Apply(cfg)
	return r
}

// Apply updates the router's config slice; safe during hot reload.
func (r *Router) Apply(cfg Config) {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cfg.Owners = append([]int64(nil), cfg.Owners...)
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	r.confirm.setTTL(cfg.ConfirmTTL)
}

func (r *Router) config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// MenuCommands returns the bot command menu for this router.
func (r *Router) MenuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "remind", Description: "set a reminder: /remind <when> <text>"},
		{Command: "list", Description: "list reminders"},
		{Command: "cancel", Description: "cancel a reminder by id"},
		{Command: "reschedule", Description: "move a reminder: /reschedule <id> <when>"},
		{Command: "cancelall", Description: "cancel all reminders (owners)"},
		{Command: "help", Description: "usage"},
	}
}

// Stop abandons pending confirmation cleanups. In-flight handlers drain via
// the dispatch loop's supervisor.
func (r *Router) Stop() {
	r.confirm.stop()
}

// tryEnqueue is a panic-safe enqueue helper (handles the jobs channel being
// closed during shutdown).
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes updates until ctx is cancelled or the channel
// closes. It owns a bounded worker pool so one slow handler never blocks
// the intake of further updates.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	r.runMu.Lock()
	r.sup = sup
	r.running = true
	r.runMu.Unlock()

	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			r.runMu.Lock()
			r.running = false
			r.runMu.Unlock()
			close(r.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					// Workers stay alive even if a job slips past the
					// middleware's recover.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in job",
									logx.Int("worker", idx),
									logx.Any("panic", rec),
									logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.runMu.Lock()
		r.sup = nil
		r.runMu.Unlock()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.routeUpdate(ctx, up)
		}
	}
}

func (r *Router) routeUpdate(root context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(root, up)
	case kit.UpdateChannelPost:
		r.routeChannelPost(root, up)
	case kit.UpdateCallback:
		r.routeCallback(root, up)
	}
}

func (r *Router) enqueue(root context.Context, req *Request, h HandlerFunc) {
	req.ReqID = newReqID()
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)

	final := Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(30*time.Second),
	)
	if !r.tryEnqueue(func() { _ = final(root, req) }) {
		_, _ = r.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	ts := time.Now().UnixNano()
	return base36(ts) + "-" + base36(int64(n)) + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alpha[rand.Intn(len(alpha))])
	}
	return b.String()
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [32]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}
