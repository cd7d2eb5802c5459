package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"
)

// channel ids in bot-api form are -1000000000000 - id
const channelIDOffset = 1_000_000_000_000

// ErrNotAChannel is returned when a channel was expected.
var ErrNotAChannel = errors.New("not a channel")

// ChannelPeerID converts a bare channel id into its bot-api form.
func ChannelPeerID(bare int64) int64 {
	return -(channelIDOffset + bare)
}

// BareChannelID reverses ChannelPeerID. ok is false for user and basic
// group ids.
func BareChannelID(id int64) (bare int64, ok bool) {
	if id >= -channelIDOffset {
		return 0, false
	}
	return -id - channelIDOffset, true
}

// PeerID returns the bot-api id of an input peer.
func PeerID(peer tg.InputPeerClass) (int64, bool) {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID, true
	case *tg.InputPeerChat:
		return -p.ChatID, true
	case *tg.InputPeerChannel:
		return ChannelPeerID(p.ChannelID), true
	}
	return 0, false
}

// RememberPeer caches the input peer of a bot-api chat id.
func (c *Client) RememberPeer(id int64, peer tg.InputPeerClass) {
	if peer == nil {
		return
	}
	c.peersMu.Lock()
	defer c.peersMu.Unlock()
	c.peers[id] = peer
}

func (c *Client) lookupPeer(id int64) (tg.InputPeerClass, bool) {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

func (c *Client) rememberChats(chats []tg.ChatClass) {
	for _, chat := range chats {
		switch ch := chat.(type) {
		case *tg.Channel:
			c.RememberPeer(ChannelPeerID(ch.ID), &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash})
		case *tg.Chat:
			c.RememberPeer(-ch.ID, &tg.InputPeerChat{ChatID: ch.ID})
		}
	}
}

// inputChannel returns the input channel for a bot-api channel id. Unknown
// channels are looked up with a zero access hash, which bots may use for
// channels they are a member of.
func (c *Client) inputChannel(ctx context.Context, id int64) (*tg.InputChannel, error) {
	bare, ok := BareChannelID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotAChannel, id)
	}

	if p, ok := c.lookupPeer(id); ok {
		if pc, ok := p.(*tg.InputPeerChannel); ok {
			return &tg.InputChannel{ChannelID: pc.ChannelID, AccessHash: pc.AccessHash}, nil
		}
	}

	var chats tg.MessagesChatsClass
	err := c.invoke(ctx, "get channel", func(api *tg.Client) error {
		var err error
		chats, err = api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: bare}})
		return err
	})
	if err != nil {
		return nil, err
	}

	c.rememberChats(chats.GetChats())
	for _, chat := range chats.GetChats() {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == bare {
			return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}

	return nil, fmt.Errorf("channel %d is not accessible", id)
}

// inputPeer returns the input peer for any bot-api chat id.
func (c *Client) inputPeer(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	if p, ok := c.lookupPeer(id); ok {
		return p, nil
	}

	if _, ok := BareChannelID(id); ok {
		ch, err := c.inputChannel(ctx, id)
		if err != nil {
			return nil, err
		}
		return &tg.InputPeerChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash}, nil
	}

	if id < 0 {
		return &tg.InputPeerChat{ChatID: -id}, nil
	}
	return &tg.InputPeerUser{UserID: id}, nil
}
