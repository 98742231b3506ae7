package transport

import "context"

type UpdateKind string

const (
	UpdateMessage     UpdateKind = "message"
	UpdateChannelPost UpdateKind = "channel_post"
	UpdateCallback    UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type ChatKind string

const (
	ChatPrivate   ChatKind = "private"
	ChatGroup     ChatKind = "group"
	ChatChannel   ChatKind = "channel"
	ChatBroadcast ChatKind = "broadcast" // channel post / automatic forward
)

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	ChatKind     ChatKind
	FromID       int64
	FromUsername string
	Text         string
	// MediaRef is an opaque media handle (Telegram photo file ID) when the
	// message carries a photo; Text then holds the caption.
	MediaRef string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// SendMedia delivers a previously seen media handle with a caption.
	SendMedia(ctx context.Context, to ChatTarget, mediaRef string, caption string, opt *SendOptions) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// RecipientResolver resolves the recipient set for a destination at delivery
// time. For private chats the destination itself is the only recipient; for
// group/channel destinations the administrator set is resolved fresh on every
// call (admin changes between scheduling and firing are picked up).
type RecipientResolver interface {
	ResolveRecipients(ctx context.Context, dest ChatTarget) ([]ChatTarget, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
