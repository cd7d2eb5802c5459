// Package transfer relays a range of channel posts to destination chats
// and keeps a live, renderable view of the work in progress.
package transfer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/telegram"
)

// QueueItem is one media post found in the requested range.
type QueueItem struct {
	SourceMessageID int
	Message         *telegram.Message
	RenamedName     string
	OriginalName    string
	SizeBytes       int64
	Premium         bool   // larger than the large-file threshold
	SkipReason      string // empty when the item is eligible
}

// Eligible reports whether the item will be downloaded and uploaded.
func (q QueueItem) Eligible() bool {
	return q.SkipReason == ""
}

func (q QueueItem) entry() progress.QueueEntry {
	return progress.QueueEntry{
		Name:       q.RenamedName,
		SkipReason: q.SkipReason,
		Premium:    q.Premium,
	}
}

// Session holds the state of the single running transfer. The transfer
// goroutine and its progress callbacks write to it, the refresh loop and
// the status API read it through Snapshot.
type Session struct {
	mu      sync.Mutex
	state   progress.State
	entries []progress.QueueEntry
	next    int // first entry of the remaining view

	download progress.SpeedSample
	upload   progress.SpeedSample

	cancel atomic.Bool
	now    func() time.Time
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// Begin resets the session for a new transfer and enters the fetching phase.
func (s *Session) Begin() {
	s.cancel.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = progress.State{Status: progress.StatusFetching}
	s.entries = nil
	s.next = 0
}

// Cancel asks the running transfer to stop at its next check point.
func (s *Session) Cancel() {
	s.cancel.Store(true)
}

// Cancelled reports whether Cancel was called since the last Begin.
func (s *Session) Cancelled() bool {
	return s.cancel.Load()
}

// SetQueue publishes the queue and its counts. The first item is the one
// about to start, so the remaining view begins at the second.
func (s *Session) SetQueue(items []QueueItem, premiumLimit int64) {
	skipped := lo.CountBy(items, func(q QueueItem) bool { return !q.Eligible() })
	premium := lo.CountBy(items, func(q QueueItem) bool { return q.Premium })

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = lo.Map(items, func(q QueueItem, _ int) progress.QueueEntry { return q.entry() })
	s.next = min(1, len(items))
	s.state.Total = len(items)
	s.state.Skipped = skipped
	s.state.PremiumCount = premium
	s.state.ToProcess = len(items) - skipped
	s.state.Processed = 0
	s.state.PremiumLimit = premiumLimit
}

// Advance moves the remaining view past the item at index i.
func (s *Session) Advance(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = min(i+1, len(s.entries))
}

// StartDownload enters the download phase for the index-th eligible item.
func (s *Session) StartDownload(index int, fileName string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = progress.StatusDownloading
	s.state.CurrentIndex = index
	s.state.FileName = fileName
	s.state.CurrentSize = 0
	s.state.TotalSize = size
	s.state.DownloadSpeed = 0
	s.download.Reset(s.now())
}

// DownloadProgress is the download progress sink. It does nothing once
// the transfer is cancelled.
func (s *Session) DownloadProgress(current, total int64) {
	if s.Cancelled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentSize = current
	s.state.TotalSize = total
	if speed, ok := s.download.Observe(current, s.now()); ok {
		s.state.DownloadSpeed = speed
	}
}

// StartUpload enters the upload phase. size is the size of the file on
// disk, which is more reliable than what the download reported.
func (s *Session) StartUpload(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = progress.StatusUploading
	s.state.CurrentSize = 0
	s.state.TotalSize = size
	s.state.UploadSpeed = 0
	s.upload.Reset(s.now())
}

// ResetUpload restarts byte counting before the next destination.
func (s *Session) ResetUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentSize = 0
	s.upload.Reset(s.now())
}

// UploadProgress is the upload progress sink. It does nothing once the
// transfer is cancelled.
func (s *Session) UploadProgress(current, total int64) {
	if s.Cancelled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentSize = current
	if total > 0 {
		s.state.TotalSize = total
	}
	if speed, ok := s.upload.Observe(current, s.now()); ok {
		s.state.UploadSpeed = speed
	}
}

// SetProcessed records the number of fully relayed items.
func (s *Session) SetProcessed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Processed = n
}

// Finish returns the session to idle with an empty queue.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = progress.StatusIdle
	s.entries = nil
	s.next = 0
}

// Snapshot returns a consistent copy of the current state.
func (s *Session) Snapshot() progress.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	st.Cancelled = s.Cancelled()
	if s.next < len(s.entries) {
		st.Queue = append([]progress.QueueEntry(nil), s.entries[s.next:]...)
	} else {
		st.Queue = nil
	}
	return st
}
