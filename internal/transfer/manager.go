package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tg-relay/internal/logger"
	"github.com/blockedby/tg-relay/internal/progress"
)

// errors
var (
	ErrAlreadyRunning = errors.New("a transfer is already running")
)

// Job represents an active transfer
type Job struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
	StartLink string    `json:"start_link"`
	EndLink   string    `json:"end_link"`
}

// CompletedEvent is published when a transfer ends, successfully or not.
type CompletedEvent struct {
	JobID         uuid.UUID `json:"job_id"`
	SourceChannel int64     `json:"source_channel"`
	StartLink     string    `json:"start_link"`
	EndLink       string    `json:"end_link"`
	Total         int       `json:"total"`
	Processed     int       `json:"processed"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	Cancelled     bool      `json:"cancelled"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// EventPublisher announces finished transfers.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, event CompletedEvent) error
}

// Processor runs a single transfer.
type Processor interface {
	ProcessRange(ctx context.Context, req Request, sink StatusSink) Report
	Session() *Session
}

// DoneFunc is called after a job ends, before the job slot is released.
type DoneFunc func(job Job, report Report)

// Manager manages the active transfer
// ensures only one job runs at a time
// thread-safe
type Manager struct {
	mu       sync.Mutex
	current  *Job
	cancelFn context.CancelFunc
	wg       sync.WaitGroup

	processor Processor
	publisher EventPublisher
	log       *logger.Logger
}

// NewManager creates a new transfer manager. publisher may be nil.
func NewManager(p Processor, publisher EventPublisher, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Get()
	}
	return &Manager{
		processor: p,
		publisher: publisher,
		log:       log.WithComponent("transfer-manager"),
	}
}

// Start starts a new transfer in the background
// returns ErrAlreadyRunning if a job is already running
func (m *Manager) Start(ctx context.Context, req Request, sink StatusSink, onDone DoneFunc) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// the job outlives the command or request that started it
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancelFn = cancel

	job := &Job{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		StartLink: req.StartLink,
		EndLink:   req.EndLink,
	}
	m.current = job

	m.wg.Add(1)
	go m.run(jobCtx, *job, req, sink, onDone)

	return job, nil
}

// Cancel stops the running transfer at its next check point and aborts
// in-flight transfers. Returns false when nothing is running.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	m.processor.Session().Cancel()
	// the job context also carries the cancel, in case the run has not
	// reached Begin yet
	if m.cancelFn != nil {
		m.cancelFn()
	}
	return true
}

// Stop cancels the running transfer and waits for it to finish
// safe to call when no job is running
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.current != nil {
		m.processor.Session().Cancel()
	}
	if m.cancelFn != nil {
		m.cancelFn()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Current returns the currently running job
// returns nil if no job is running
func (m *Manager) Current() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Snapshot returns the live state of the session.
func (m *Manager) Snapshot() progress.State {
	return m.processor.Session().Snapshot()
}

// run executes the transfer
// this is called in a goroutine
func (m *Manager) run(ctx context.Context, job Job, req Request, sink StatusSink, onDone DoneFunc) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		if m.current != nil && m.current.ID == job.ID {
			m.current = nil
			if m.cancelFn != nil {
				m.cancelFn()
			}
			m.cancelFn = nil
		}
		m.mu.Unlock()
	}()

	report := m.processor.ProcessRange(ctx, req, sink)

	if m.publisher != nil {
		event := CompletedEvent{
			JobID:         job.ID,
			SourceChannel: report.SourceChannel,
			StartLink:     job.StartLink,
			EndLink:       job.EndLink,
			Total:         report.Total,
			Processed:     report.Processed,
			Skipped:       report.Skipped,
			Failed:        report.Failed,
			Cancelled:     report.Cancelled,
			StartedAt:     job.StartedAt,
			FinishedAt:    time.Now(),
		}
		if report.Err != nil {
			event.Error = report.Err.Error()
		}

		// ctx may already be cancelled by Stop
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := m.publisher.PublishTransferCompleted(pubCtx, event); err != nil {
			m.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("publish completion failed")
		}
		cancel()
	}

	if onDone != nil {
		onDone(job, report)
	}
}
