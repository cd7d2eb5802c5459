package publisher

import (
	"context"
	"fmt"

	"github.com/blockedby/tg-relay/internal/transfer"
)

// SubjectTransferCompleted carries one event per finished transfer.
const SubjectTransferCompleted = "transfers.completed"

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements transfer.EventPublisher
type NATSPublisher struct {
	js NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(client NATSClient) *NATSPublisher {
	return &NATSPublisher{js: client}
}

// PublishTransferCompleted publishes a finished transfer event
func (p *NATSPublisher) PublishTransferCompleted(ctx context.Context, event transfer.CompletedEvent) error {
	if err := p.js.Publish(ctx, SubjectTransferCompleted, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
