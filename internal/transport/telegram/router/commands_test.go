package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []string
	answered []string
	deleted  []kit.MessageRef
	notify   chan string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{notify: make(chan string, 64)}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	select {
	case f.notify <- text:
	default:
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) SendMedia(ctx context.Context, to kit.ChatTarget, _ string, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return f.SendText(ctx, to, caption, opt)
}

func (f *fakeAdapter) DeleteMessage(_ context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id string, _ string) error {
	f.mu.Lock()
	f.answered = append(f.answered, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) ResolveRecipients(_ context.Context, dest kit.ChatTarget) ([]kit.ChatTarget, error) {
	return []kit.ChatTarget{dest}, nil
}

func (f *fakeAdapter) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func (f *fakeAdapter) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type routerFixture struct {
	rt  *Router
	ad  *fakeAdapter
	svc *reminder.Service
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ad := newFakeAdapter()
	bus := eventbus.New()
	store := reminder.NewStore()
	sched := reminder.NewScheduler(logx.Nop())
	resolver := reminder.NewResolver(reminder.ResolverConfig{Location: time.UTC})
	delivery := reminder.NewDelivery(reminder.DeliveryConfig{
		RatePerSec: 100, SendTimeout: time.Second, ResolveTimeout: time.Second,
	}, ad, ad, logx.Nop(), bus)

	svc := reminder.NewService(reminder.ServiceConfig{}, resolver, store, sched, delivery, logx.Nop(), bus, nil)
	t.Cleanup(svc.Stop)

	rt := New(Config{Owners: []int64{99}, Location: time.UTC}, ad, svc, logx.Nop())
	t.Cleanup(rt.Stop)
	return &routerFixture{rt: rt, ad: ad, svc: svc}
}

// runOne pops one enqueued job and runs it synchronously.
func (f *routerFixture) runOne(t *testing.T) {
	t.Helper()
	select {
	case job := <-f.rt.jobs:
		job()
	case <-time.After(time.Second):
		t.Fatal("no job was enqueued")
	}
}

func msgUpdate(chatID, fromID int64, text string) kit.Update {
	return kit.Update{
		Kind: kit.UpdateMessage,
		Message: &kit.Message{
			ID:     1,
			ChatID: chatID,
			FromID: fromID,
			Text:   text,
		},
	}
}

func TestRouteMessageIgnoresNonCommands(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "hello there"))

	if len(f.ad.sent()) != 0 || len(f.rt.jobs) != 0 {
		t.Error("plain chatter should be ignored")
	}
}

func TestRouteMessageUnknownCommand(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/bogus"))

	if got := f.ad.lastSent(); !strings.Contains(got, "unknown command") {
		t.Errorf("reply = %q, want unknown-command hint", got)
	}
	if len(f.rt.jobs) != 0 {
		t.Error("unknown commands must not be enqueued")
	}
}

func TestRouteMessageStripsBotMention(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/list@remind_bot"))
	f.runOne(t)

	if got := f.ad.lastSent(); got != "no reminders" {
		t.Errorf("reply = %q, want empty list", got)
	}
}

func TestCancelAllRequiresOwner(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/cancelall"))
	if got := f.ad.lastSent(); got != "unauthorized" {
		t.Errorf("non-owner reply = %q, want unauthorized", got)
	}

	f.rt.routeMessage(context.Background(), msgUpdate(7, 99, "/cancelall"))
	f.runOne(t)
	if got := f.ad.lastSent(); !strings.Contains(got, "cancelled 0") {
		t.Errorf("owner reply = %q, want cancel count", got)
	}
}

func TestRemindCreatesReminder(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/remind 30m water the plants"))
	f.runOne(t)

	items := f.svc.List()
	if len(items) != 1 {
		t.Fatalf("reminders = %d, want 1", len(items))
	}
	if items[0].Body != "water the plants" {
		t.Errorf("body = %q", items[0].Body)
	}
	if got := f.ad.lastSent(); !strings.Contains(got, "#1") || !strings.Contains(got, "will fire") {
		t.Errorf("confirmation = %q", got)
	}
}

func TestRemindUsageOnEmptyArgs(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/remind"))
	f.runOne(t)

	if got := f.ad.lastSent(); !strings.Contains(got, "usage:") {
		t.Errorf("reply = %q, want usage", got)
	}
}

func TestRemindBadShorthand(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/remind 2hours stand up"))
	f.runOne(t)

	if got := f.ad.lastSent(); !strings.Contains(got, "bad duration") {
		t.Errorf("reply = %q, want bad-duration hint", got)
	}
	if len(f.svc.List()) != 0 {
		t.Error("no reminder should be created on a parse error")
	}
}

func TestCancelCommand(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	rem := f.svc.CreateAt(kit.ChatTarget{ChatID: 7}, time.Now().Add(time.Hour), "x", "")

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/cancel 1"))
	f.runOne(t)

	if _, ok := f.svc.Get(rem.ID); ok {
		t.Error("reminder survived /cancel")
	}
	if got := f.ad.lastSent(); !strings.Contains(got, "cancelled") {
		t.Errorf("reply = %q", got)
	}

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/cancel 1"))
	f.runOne(t)
	if got := f.ad.lastSent(); !strings.Contains(got, "no reminder #1") {
		t.Errorf("reply = %q, want not-found", got)
	}

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/cancel abc"))
	f.runOne(t)
	if got := f.ad.lastSent(); !strings.Contains(got, "usage:") {
		t.Errorf("reply = %q, want usage", got)
	}
}

func TestRescheduleCommand(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	rem := f.svc.CreateAt(kit.ChatTarget{ChatID: 7}, time.Now().Add(time.Hour), "x", "")

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/reschedule 1 3h"))
	f.runOne(t)

	got, _ := f.svc.Get(rem.ID)
	want := time.Now().Add(3 * time.Hour)
	if d := got.FireAt.Sub(want); d < -time.Minute || d > time.Minute {
		t.Errorf("fireAt = %v, want ~%v", got.FireAt, want)
	}
	if reply := f.ad.lastSent(); !strings.Contains(reply, "moved to") {
		t.Errorf("reply = %q", reply)
	}

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/reschedule 99 2h"))
	f.runOne(t)
	if reply := f.ad.lastSent(); !strings.Contains(reply, "no reminder #99") {
		t.Errorf("reply = %q", reply)
	}

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/reschedule oops"))
	f.runOne(t)
	if reply := f.ad.lastSent(); !strings.Contains(reply, "usage:") {
		t.Errorf("reply = %q", reply)
	}
}

func TestChannelPostIntake(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	post := func(text string) kit.Update {
		return kit.Update{
			Kind: kit.UpdateChannelPost,
			Message: &kit.Message{
				ID:       1,
				ChatID:   -100,
				ChatKind: kit.ChatBroadcast,
				Text:     text,
			},
		}
	}

	// Command posts always become reminders.
	f.rt.routeChannelPost(context.Background(), post("/remind 30m standup"))
	f.runOne(t)
	if len(f.svc.List()) != 1 {
		t.Fatalf("reminders = %d, want 1", len(f.svc.List()))
	}

	// Plain posts are ignored unless auto-capture is on.
	f.rt.routeChannelPost(context.Background(), post("quarterly numbers friday"))
	if len(f.rt.jobs) != 0 {
		t.Error("plain post captured with auto_capture off")
	}

	cfg := f.rt.config()
	cfg.AutoCapture = true
	f.rt.Apply(cfg)

	f.rt.routeChannelPost(context.Background(), post("pay the rent friday"))
	f.runOne(t)
	if len(f.svc.List()) != 2 {
		t.Errorf("reminders = %d, want 2 after auto-capture", len(f.svc.List()))
	}
}

func TestCallbackRouting(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	rem := f.svc.CreateAt(kit.ChatTarget{ChatID: 7}, time.Now().Add(time.Hour), "x", "")

	cb := func(data string) kit.Update {
		return kit.Update{
			Kind:     kit.UpdateCallback,
			Callback: &kit.Callback{ID: "cb1", FromID: 1, ChatID: 7, Data: data},
		}
	}

	// Foreign namespace: dismissed without a job.
	f.rt.routeCallback(context.Background(), cb("otherbot:cancel:1"))
	if len(f.rt.jobs) != 0 {
		t.Error("foreign callback was enqueued")
	}

	f.rt.routeCallback(context.Background(), cb(CancelAction{ID: rem.ID}.Data()))
	f.runOne(t)
	if _, ok := f.svc.Get(rem.ID); ok {
		t.Error("reminder survived cancel button")
	}

	f.ad.mu.Lock()
	answered := len(f.ad.answered)
	f.ad.mu.Unlock()
	if answered != 2 {
		t.Errorf("answered callbacks = %d, want 2 (dismiss + cancel)", answered)
	}
}

func TestCallbackPresetReschedules(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	rem := f.svc.CreateAt(kit.ChatTarget{ChatID: 7}, time.Now().Add(time.Hour), "x", "")

	up := kit.Update{
		Kind: kit.UpdateCallback,
		Callback: &kit.Callback{
			ID: "cb2", FromID: 1, ChatID: 7,
			Data: PresetAction{ID: rem.ID, Preset: reminder.PresetTomorrow}.Data(),
		},
	}
	f.rt.routeCallback(context.Background(), up)
	f.runOne(t)

	got, _ := f.svc.Get(rem.ID)
	if !got.FireAt.After(time.Now().Add(2 * time.Hour)) {
		t.Errorf("preset did not move fireAt: %v", got.FireAt)
	}
	if reply := f.ad.lastSent(); !strings.Contains(reply, "moved to") {
		t.Errorf("reply = %q", reply)
	}
}

func TestDispatchLoopEndToEnd(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan error, 1)
	go func() { done <- f.rt.DispatchLoop(ctx, updates) }()

	updates <- msgUpdate(7, 1, "/help")

	select {
	case text := <-f.ad.notify:
		if !strings.Contains(text, "remind") {
			t.Errorf("help reply = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from dispatch loop")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("DispatchLoop returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DispatchLoop did not stop")
	}
}

func TestConfirmCleanerDeletesAfterTTL(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	cfg := f.rt.config()
	cfg.ConfirmTTL = 30 * time.Millisecond
	f.rt.Apply(cfg)

	f.rt.routeMessage(context.Background(), msgUpdate(7, 1, "/list"))
	f.runOne(t)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.ad.mu.Lock()
		n := len(f.ad.deleted)
		f.ad.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("confirmation message was not auto-deleted")
}
