package reminder

import (
	"context"
	"sync"

	kit "remindbot/internal/transport"
)

type sentMsg struct {
	Chat  kit.ChatTarget
	Text  string
	Media string
	Opt   *kit.SendOptions
}

// fakeAdapter records outbound sends and can be told to fail per chat ID.
type fakeAdapter struct {
	mu        sync.Mutex
	sent      []sentMsg
	failText  map[int64]error
	failMedia map[int64]error

	notify chan sentMsg
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		failText:  map[int64]error{},
		failMedia: map[int64]error{},
		notify:    make(chan sentMsg, 64),
	}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	err := f.failText[to.ChatID]
	f.mu.Unlock()
	if err != nil {
		return kit.MessageRef{}, err
	}
	f.record(sentMsg{Chat: to, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) SendMedia(_ context.Context, to kit.ChatTarget, mediaRef, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	err := f.failMedia[to.ChatID]
	f.mu.Unlock()
	if err != nil {
		return kit.MessageRef{}, err
	}
	f.record(sentMsg{Chat: to, Text: caption, Media: mediaRef, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) DeleteMessage(context.Context, kit.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) record(m sentMsg) {
	f.mu.Lock()
	f.sent = append(f.sent, m)
	f.mu.Unlock()
	select {
	case f.notify <- m:
	default:
	}
}

func (f *fakeAdapter) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMsg, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeRecipients resolves to a fixed recipient set (or a fixed error).
type fakeRecipients struct {
	recipients []kit.ChatTarget
	err        error
}

func (f *fakeRecipients) ResolveRecipients(_ context.Context, dest kit.ChatTarget) ([]kit.ChatTarget, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.recipients == nil {
		return []kit.ChatTarget{dest}, nil
	}
	return f.recipients, nil
}
