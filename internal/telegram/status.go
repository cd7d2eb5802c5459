package telegram

import (
	"context"

	"github.com/gotd/td/tg"
)

// CancelAllData is the callback payload of the cancel button.
const CancelAllData = "cancel_all_now"

// CancelMarkup is the inline keyboard attached to a live status message.
func CancelMarkup() tg.ReplyMarkupClass {
	return &tg.ReplyInlineMarkup{
		Rows: []tg.KeyboardButtonRow{{
			Buttons: []tg.KeyboardButtonClass{
				&tg.KeyboardButtonCallback{Text: "❌ Cancel All", Data: []byte(CancelAllData)},
			},
		}},
	}
}

// Editor edits sent messages. *Client implements it.
type Editor interface {
	EditHTML(ctx context.Context, chatID int64, messageID int, text string, markup tg.ReplyMarkupClass) error
}

// StatusMessage is a message that is edited in place to show progress.
type StatusMessage struct {
	client    Editor
	chatID    int64
	messageID int
}

// NewStatusMessage wraps an already sent message.
func NewStatusMessage(c Editor, chatID int64, messageID int) *StatusMessage {
	return &StatusMessage{client: c, chatID: chatID, messageID: messageID}
}

// MessageID returns the id of the wrapped message.
func (s *StatusMessage) MessageID() int {
	return s.messageID
}

// UpdateStatus edits the message and keeps the cancel button.
func (s *StatusMessage) UpdateStatus(ctx context.Context, text string) error {
	return s.client.EditHTML(ctx, s.chatID, s.messageID, text, CancelMarkup())
}

// Finish edits the message one last time and drops the cancel button.
func (s *StatusMessage) Finish(ctx context.Context, text string) error {
	return s.client.EditHTML(ctx, s.chatID, s.messageID, text, nil)
}
