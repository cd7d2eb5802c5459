package transfer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blockedby/tg-relay/internal/telegram"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// Link points at a single post. Exactly one of ChannelID or Username is set.
type Link struct {
	ChannelID int64
	Username  string
	MessageID int
}

// ParseLink parses t.me post links:
//
//	https://t.me/c/1234567890/42          private channel
//	https://t.me/c/1234567890/7/42        private forum topic
//	https://t.me/1234567890/42            numeric channel id
//	https://t.me/somechannel/42           public username
func ParseLink(raw string) (Link, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}

	msgID, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || msgID <= 0 {
		return Link{}, fmt.Errorf("%w: bad message id in %q", ErrInvalidLink, raw)
	}

	if _, rest, ok := strings.Cut(s, "/c/"); ok {
		channel, _, found := strings.Cut(rest, "/")
		if !found {
			return Link{}, fmt.Errorf("%w: missing message id in %q", ErrInvalidLink, raw)
		}
		id, err := strconv.ParseInt(channel, 10, 64)
		if err != nil || id <= 0 {
			return Link{}, fmt.Errorf("%w: bad channel id in %q", ErrInvalidLink, raw)
		}
		return Link{ChannelID: NormalizeChannelID(id), MessageID: msgID}, nil
	}

	segment := parts[len(parts)-2]
	if id, err := strconv.ParseInt(segment, 10, 64); err == nil {
		return Link{ChannelID: NormalizeChannelID(id), MessageID: msgID}, nil
	}
	if usernamePattern.MatchString(segment) {
		return Link{Username: segment, MessageID: msgID}, nil
	}

	return Link{}, fmt.Errorf("%w: no channel in %q", ErrInvalidLink, raw)
}

// NormalizeChannelID converts a bare channel id into the -100 prefixed
// bot-api id. Ids that are already negative are returned as is.
func NormalizeChannelID(id int64) int64 {
	if id < 0 {
		return id
	}
	return telegram.ChannelPeerID(id)
}
