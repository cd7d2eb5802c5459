package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blockedby/tg-relay/internal/progress"
)

// startRefresh pushes the rendered session to sink every interval until
// the returned stop func is called. stop waits for the loop to exit and
// may be called more than once.
func (o *Orchestrator) startRefresh(ctx context.Context, sink StatusSink, interval time.Duration) (stop func()) {
	if sink == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.refreshLoop(ctx, sink, interval, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

// errSinkPanic wraps a panic raised by a StatusSink.
var errSinkPanic = errors.New("status sink panicked")

// refreshLoop renders immediately, then on every tick. A render equal to
// the last one pushed is not sent again. Sink errors and panics are logged
// and the loop carries on; it exits once the run is cancelled.
func (o *Orchestrator) refreshLoop(ctx context.Context, sink StatusSink, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	pushed := false

	for {
		text := progress.Render(o.session.Snapshot())
		if !pushed || text != last {
			if err := pushStatus(ctx, sink, text); err != nil {
				switch {
				case errors.Is(err, errSinkPanic):
					o.log.Error().Err(err).Msg("status refresh failed")
				case !errors.Is(err, context.Canceled):
					o.log.Debug().Err(err).Msg("status refresh failed")
				}
			} else {
				last = text
				pushed = true
			}
		}

		if o.session.Cancelled() {
			return
		}

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pushStatus calls sink and turns a panic into an error.
func pushStatus(ctx context.Context, sink StatusSink, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSinkPanic, r)
		}
	}()
	return sink.UpdateStatus(ctx, text)
}
