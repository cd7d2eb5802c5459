// Package bot implements the owner-only command layer of the relay bot.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-relay/internal/logger"
	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/settings"
	"github.com/blockedby/tg-relay/internal/telegram"
	"github.com/blockedby/tg-relay/internal/transfer"
)

// Chat is the telegram side the commands talk to. *telegram.Client implements it.
type Chat interface {
	SendHTML(ctx context.Context, chatID int64, text string) (int, error)
	EditHTML(ctx context.Context, chatID int64, messageID int, text string, markup tg.ReplyMarkupClass) error
	AnswerCallback(ctx context.Context, queryID int64, text string) error
	SaveMedia(ctx context.Context, raw *tg.Message, path string) error
	ResolveUsername(ctx context.Context, username string) (int64, error)
}

// Transfers runs relay jobs. *transfer.Manager implements it.
type Transfers interface {
	Start(ctx context.Context, req transfer.Request, sink transfer.StatusSink, onDone transfer.DoneFunc) (*transfer.Job, error)
	Cancel() bool
	Current() *transfer.Job
	Snapshot() progress.State
}

// SettingsStore persists the owner settings. *settings.Repository implements it.
type SettingsStore interface {
	Load(ctx context.Context) (*settings.Settings, error)
	Update(ctx context.Context, fn func(*settings.Settings) error) (*settings.Settings, error)
}

// Thumbnails manages the custom thumbnail. *thumbnail.Store implements it.
type Thumbnails interface {
	Exists() bool
	SaveFile(path string) error
	Delete() (bool, error)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Chat       Chat
	Transfers  Transfers
	Settings   SettingsStore
	Thumbnails Thumbnails

	// Sink receives status text next to the status message, e.g. websocket clients. Optional.
	Sink transfer.StatusSink
}

// Options configure a Bot.
type Options struct {
	OwnerID      int64
	LogChannelID int64 // 0 disables summary copies
	Runtime      settings.Runtime
	TempDir      string // scratch space for /setthumb downloads
}

// Command is an incoming /command.
type Command struct {
	Name    string // without the slash and bot mention
	Args    string
	ChatID  int64
	UserID  int64
	Message *tg.Message // raw message, for attachments
}

// Callback is an inline button press.
type Callback struct {
	QueryID int64
	UserID  int64
	Data    string
}

type commandFunc func(ctx context.Context, cmd Command) error

// Bot dispatches owner commands.
type Bot struct {
	deps     Deps
	opts     Options
	log      *logger.Logger
	commands map[string]commandFunc
	baseCtx  context.Context
}

// ErrUnknownCommand is returned by HandleCommand for names it does not serve.
var ErrUnknownCommand = errors.New("unknown command")

// New creates a bot. ctx outlives single updates and bounds transfers.
func New(ctx context.Context, deps Deps, opts Options, log *logger.Logger) *Bot {
	if log == nil {
		log = logger.Nop()
	}
	if opts.TempDir == "" {
		opts.TempDir = opts.Runtime.DownloadDir
	}

	b := &Bot{
		deps:    deps,
		opts:    opts,
		log:     log.WithComponent("bot"),
		baseCtx: ctx,
	}
	b.commands = map[string]commandFunc{
		"start":       b.cmdStart,
		"help":        b.cmdHelp,
		"settings":    b.cmdSettings,
		"status":      b.cmdStatus,
		"range":       b.cmdRange,
		"process":     b.cmdProcess,
		"cancel":      b.cmdCancel,
		"source":      b.cmdSource,
		"dest":        b.cmdDest,
		"whitelist":   b.wordListCommand("Whitelist", whitelistOf),
		"blacklist":   b.wordListCommand("Blacklist", blacklistOf),
		"removewords": b.wordListCommand("Removed words", removedWordsOf),
		"prefix":      b.cmdPrefix,
		"suffix":      b.cmdSuffix,
		"username":    b.cmdUsername,
		"caption":     b.cmdCaption,
		"premium":     b.cmdPremium,
		"setthumb":    b.cmdSetThumb,
		"delthumb":    b.cmdDelThumb,
	}
	return b
}

// CommandNames lists every served command.
func (b *Bot) CommandNames() []string {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	return names
}

// IsOwner reports whether userID may control the bot.
func (b *Bot) IsOwner(userID int64) bool {
	return b.opts.OwnerID != 0 && userID == b.opts.OwnerID
}

// HandleCommand runs cmd. Commands from anyone but the owner are ignored.
func (b *Bot) HandleCommand(ctx context.Context, cmd Command) error {
	if !b.IsOwner(cmd.UserID) {
		b.log.Debug().Int64("user_id", cmd.UserID).Str("command", cmd.Name).Msg("ignoring command from non-owner")
		return nil
	}

	fn, ok := b.commands[cmd.Name]
	if !ok {
		return ErrUnknownCommand
	}

	b.log.Info().Str("command", cmd.Name).Str("args", cmd.Args).Msg("command")
	if err := fn(ctx, cmd); err != nil {
		b.log.Error().Err(err).Str("command", cmd.Name).Msg("command failed")
		return b.reply(ctx, cmd, "❌ Error: "+escape(truncate(err.Error(), 200)))
	}
	return nil
}

// HandleCallback answers inline button presses.
func (b *Bot) HandleCallback(ctx context.Context, cb Callback) error {
	if !b.IsOwner(cb.UserID) {
		return b.deps.Chat.AnswerCallback(ctx, cb.QueryID, "⛔ Not allowed")
	}

	switch cb.Data {
	case telegram.CancelAllData:
		text := "ℹ️ No transfer running"
		if b.deps.Transfers.Cancel() {
			text = "🛑 Cancelling..."
			b.log.Info().Msg("cancel requested from button")
		}
		return b.deps.Chat.AnswerCallback(ctx, cb.QueryID, text)
	}
	return b.deps.Chat.AnswerCallback(ctx, cb.QueryID, "")
}

func (b *Bot) reply(ctx context.Context, cmd Command, text string) error {
	_, err := b.deps.Chat.SendHTML(ctx, cmd.ChatID, text)
	return err
}

// detached returns a context for work that must finish even when the bot
// is shutting down, like the final status edit.
func (b *Bot) detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(b.baseCtx), 30*time.Second)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
