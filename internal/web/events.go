package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/blockedby/tg-relay/internal/transfer"
)

// WebSocket event types
const (
	EventTransferStatus = "transfer.status"
	EventTransferDone   = "transfer.done"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusPayload is the payload for EventTransferStatus
type StatusPayload struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// TransferStatusEvent creates a JSON message carrying the rendered status text
func TransferStatusEvent(text string) []byte {
	return encodeEvent(EventTransferStatus, StatusPayload{Text: text, At: time.Now()})
}

// TransferDoneEvent creates a JSON message carrying the final summary of a run
func TransferDoneEvent(payload any) []byte {
	return encodeEvent(EventTransferDone, payload)
}

func encodeEvent(typ string, payload any) []byte {
	b, _ := json.Marshal(WSEvent{Type: typ, Payload: payload})
	return b
}

// HubSink pushes status text and completion events to websocket clients.
// It implements transfer.StatusSink and transfer.EventPublisher and never fails.
type HubSink struct {
	Hub *Hub
}

// UpdateStatus broadcasts text as a status event.
func (s HubSink) UpdateStatus(_ context.Context, text string) error {
	if s.Hub != nil {
		s.Hub.Broadcast(TransferStatusEvent(text))
	}
	return nil
}

// PublishTransferCompleted broadcasts the final counters of a run.
func (s HubSink) PublishTransferCompleted(_ context.Context, event transfer.CompletedEvent) error {
	if s.Hub != nil {
		s.Hub.Broadcast(TransferDoneEvent(event))
	}
	return nil
}
