package transfer

import (
	"context"
	"errors"
)

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(ctx context.Context, text string) error

// UpdateStatus calls f.
func (f SinkFunc) UpdateStatus(ctx context.Context, text string) error {
	return f(ctx, text)
}

// MultiSink fans status text out to several sinks. Every sink is called
// even when an earlier one fails; the errors are joined.
type MultiSink []StatusSink

// UpdateStatus implements StatusSink.
func (m MultiSink) UpdateStatus(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.UpdateStatus(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publishers fans completion events out to several publishers, joining errors.
type Publishers []EventPublisher

// PublishTransferCompleted implements EventPublisher.
func (p Publishers) PublishTransferCompleted(ctx context.Context, event CompletedEvent) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.PublishTransferCompleted(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
