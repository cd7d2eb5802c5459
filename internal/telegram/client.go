// Package telegram provides the bot's MTProto client wrapper.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-relay/internal/logger"
)

// FLOOD_WAIT retries per call
const maxFloodRetries = 3

// Client wraps the gotgproto bot client and provides the high-level
// operations the relay needs. It uses the Manager to access the
// underlying protocol client, so it survives a reconnect.
type Client struct {
	api         func() (*tg.Client, error)
	rateLimiter *RateLimiter
	downloader  *downloader.Downloader
	log         *logger.Logger

	peers   map[int64]tg.InputPeerClass
	peersMu sync.RWMutex
}

// NewClient creates a new telegram client wrapper using the Manager.
func NewClient(manager *Manager) *Client {
	return newClient(func() (*tg.Client, error) {
		proto := manager.GetClient()
		if proto == nil {
			return nil, ErrNotReady
		}
		return proto.API(), nil
	})
}

func newClient(api func() (*tg.Client, error)) *Client {
	return &Client{
		api:         api,
		rateLimiter: DefaultRateLimiter(),
		downloader:  downloader.NewDownloader(),
		log:         logger.Get().WithComponent("telegram"),
		peers:       make(map[int64]tg.InputPeerClass),
	}
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	return c.api()
}

// invoke runs fn under the rate limiter and retries it after a FLOOD_WAIT.
func (c *Client) invoke(ctx context.Context, op string, fn func(api *tg.Client) error) error {
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		api, err := c.API()
		if err != nil {
			return err
		}

		err = fn(api)
		if err == nil {
			return nil
		}

		if c.rateLimiter.Observe(err) && attempt < maxFloodRetries {
			c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("FLOOD_WAIT, backing off")
			continue
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}

// ResolveUsername resolves a public channel username to its bot-api id.
// username can be with or without @ prefix
func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	username = strings.TrimPrefix(username, "@")

	var resolved *tg.ContactsResolvedPeer
	err := c.invoke(ctx, "resolve username", func(api *tg.Client) error {
		var err error
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
			Username: username,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	c.rememberChats(resolved.Chats)
	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			c.log.Debug().Str("username", username).Int64("channel_id", ch.ID).Msg("username resolved")
			return ChannelPeerID(ch.ID), nil
		}
	}

	return 0, fmt.Errorf("%w: @%s", ErrNotAChannel, username)
}

// FetchMessage fetches a single channel post. It returns nil without an
// error when the post does not exist.
func (c *Client) FetchMessage(ctx context.Context, channelID int64, messageID int) (*Message, error) {
	ch, err := c.inputChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var res tg.MessagesMessagesClass
	err = c.invoke(ctx, "get message", func(api *tg.Client) error {
		var err error
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: ch,
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, raw := range c.extractMessages(res) {
		if m := parseMessage(raw, channelID); m != nil && m.ID == messageID {
			return m, nil
		}
	}
	return nil, nil
}

// extractMessages returns the messages of a history response and caches
// the chats that came with them.
func (c *Client) extractMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch h := res.(type) {
	case *tg.MessagesChannelMessages:
		c.rememberChats(h.Chats)
		return h.Messages
	case *tg.MessagesMessagesSlice:
		c.rememberChats(h.Chats)
		return h.Messages
	case *tg.MessagesMessages:
		c.rememberChats(h.Chats)
		return h.Messages
	}
	return nil
}
