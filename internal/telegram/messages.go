package telegram

import (
	"context"
	"strings"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// formatHTML turns bot HTML into plain text plus message entities. Text
// that does not parse is sent as is.
func formatHTML(text string) (string, []tg.MessageEntityClass) {
	var b entity.Builder
	if err := html.HTML(strings.NewReader(text), &b, html.Options{}); err != nil {
		return text, nil
	}
	return b.Complete()
}

// SendHTML sends an HTML formatted message and returns its id.
func (c *Client) SendHTML(ctx context.Context, chatID int64, text string) (int, error) {
	peer, err := c.inputPeer(ctx, chatID)
	if err != nil {
		return 0, err
	}

	msg, entities := formatHTML(text)
	randomID := newRandomID()

	var updates tg.UpdatesClass
	err = c.invoke(ctx, "send message", func(api *tg.Client) error {
		var err error
		updates, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:      peer,
			Message:   msg,
			Entities:  entities,
			RandomID:  randomID,
			NoWebpage: true,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	return sentMessageID(updates, randomID), nil
}

// EditHTML replaces the text and keyboard of a message. markup may be nil
// to drop the keyboard. Editing to identical content is not an error.
func (c *Client) EditHTML(ctx context.Context, chatID int64, messageID int, text string, markup tg.ReplyMarkupClass) error {
	peer, err := c.inputPeer(ctx, chatID)
	if err != nil {
		return err
	}

	msg, entities := formatHTML(text)
	req := &tg.MessagesEditMessageRequest{
		Peer:      peer,
		ID:        messageID,
		NoWebpage: true,
	}
	req.SetMessage(msg)
	req.SetEntities(entities)
	if markup != nil {
		req.SetReplyMarkup(markup)
	}

	err = c.invoke(ctx, "edit message", func(api *tg.Client) error {
		_, err := api.MessagesEditMessage(ctx, req)
		return err
	})
	if err != nil && tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return nil
	}
	return err
}

// AnswerCallback acknowledges a callback query, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, queryID int64, text string) error {
	return c.invoke(ctx, "answer callback", func(api *tg.Client) error {
		_, err := api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
			QueryID: queryID,
			Message: text,
		})
		return err
	})
}

// sentMessageID finds the id of the message created by a send call.
func sentMessageID(updates tg.UpdatesClass, randomID int64) int {
	var list []tg.UpdateClass

	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		list = u.Updates
	case *tg.UpdatesCombined:
		list = u.Updates
	}

	id := 0
	for _, upd := range list {
		switch v := upd.(type) {
		case *tg.UpdateMessageID:
			if v.RandomID == randomID {
				return v.ID
			}
		case *tg.UpdateNewMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				id = m.ID
			}
		case *tg.UpdateNewChannelMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				id = m.ID
			}
		}
	}
	return id
}
