package bot

import (
	"context"
	"errors"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"github.com/celestix/gotgproto/ext"
	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-relay/internal/telegram"
)

const (
	commandTimeout  = 2 * time.Minute // /setthumb downloads a photo
	callbackTimeout = 10 * time.Second
)

// PeerCache remembers input peers seen in updates so replies can reach
// them. *telegram.Client implements it.
type PeerCache interface {
	RememberPeer(id int64, peer tg.InputPeerClass)
}

// Register adds the command and callback handlers to the client dispatcher.
func (b *Bot) Register(client *gotgproto.Client, peers PeerCache) {
	d := client.Dispatcher
	for _, name := range b.CommandNames() {
		d.AddHandler(handlers.NewCommand(name, b.onCommand(peers)))
	}
	d.AddHandler(handlers.NewCallbackQuery(filters.CallbackQuery.Prefix(telegram.CancelAllData), b.onCallback))
}

func (b *Bot) onCommand(peers PeerCache) func(*ext.Context, *ext.Update) error {
	return func(_ *ext.Context, u *ext.Update) error {
		msg := u.EffectiveMessage
		if msg == nil || msg.Message == nil {
			return nil
		}

		name, args, ok := parseCommand(msg.Message.Message)
		if !ok {
			return nil
		}

		var userID int64
		if user := u.EffectiveUser(); user != nil {
			userID = user.ID
		}

		// private chats share the user id
		chatID := userID
		if chat := u.EffectiveChat(); chat != nil {
			peer := chat.GetInputPeer()
			if id, ok := telegram.PeerID(peer); ok {
				chatID = id
				peers.RememberPeer(id, peer)
			}
		}

		ctx, cancel := context.WithTimeout(b.baseCtx, commandTimeout)
		defer cancel()

		err := b.HandleCommand(ctx, Command{
			Name:    name,
			Args:    args,
			ChatID:  chatID,
			UserID:  userID,
			Message: msg.Message,
		})
		if err != nil && !errors.Is(err, ErrUnknownCommand) {
			b.log.Warn().Err(err).Str("command", name).Msg("reply failed")
		}
		return nil
	}
}

func (b *Bot) onCallback(_ *ext.Context, u *ext.Update) error {
	q := u.CallbackQuery
	if q == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(b.baseCtx, callbackTimeout)
	defer cancel()

	err := b.HandleCallback(ctx, Callback{
		QueryID: q.QueryID,
		UserID:  q.UserID,
		Data:    string(q.Data),
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("callback answer failed")
	}
	return nil
}
