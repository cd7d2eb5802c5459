package transfer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-relay/internal/progress"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    Link
		wantErr bool
	}{
		{"private channel", "https://t.me/c/1234567890/42", Link{ChannelID: -1001234567890, MessageID: 42}, false},
		{"private topic", "https://t.me/c/1234567890/7/42", Link{ChannelID: -1001234567890, MessageID: 42}, false},
		{"numeric id", "https://t.me/1234567890/5", Link{ChannelID: -1001234567890, MessageID: 5}, false},
		{"username", "https://t.me/somechannel/99", Link{Username: "somechannel", MessageID: 99}, false},
		{"query and slash", " t.me/somechannel/99/?single ", Link{Username: "somechannel", MessageID: 99}, false},
		{"missing message id", "https://t.me/c/1234567890/", Link{}, true},
		{"zero message id", "https://t.me/somechannel/0", Link{}, true},
		{"host only", "https://t.me/42", Link{}, true},
		{"bad private id", "https://t.me/c/abc/42", Link{}, true},
		{"garbage", "hello", Link{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.link)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeChannelID(t *testing.T) {
	assert.Equal(t, int64(-1001234567890), NormalizeChannelID(1234567890))
	assert.Equal(t, int64(-1000000000777), NormalizeChannelID(777))
	assert.Equal(t, int64(-1001234567890), NormalizeChannelID(-1001234567890))
}

func TestBuildCaption(t *testing.T) {
	fields := CaptionFields{
		FileName:    "Movie.mkv",
		FileSize:    "1.5GB",
		Language:    "Tamil",
		Subtitle:    "",
		FileCaption: "source text",
	}

	assert.Equal(t, "Movie.mkv | Tamil", BuildCaption("", fields))
	assert.Equal(t, "Movie.mkv (1.5GB)\nsource text", BuildCaption("{filename} ({filesize})\n{filecaption}", fields))
	assert.Equal(t, "{year} Movie.mkv", BuildCaption("{year} {filename}", fields))

	long := BuildCaption("{filecaption}", CaptionFields{FileCaption: strings.Repeat("я", 2000)})
	assert.Len(t, []rune(long), maxCaptionLength)
}

func TestSession_QueueView(t *testing.T) {
	s := NewSession()
	s.Begin()
	assert.Equal(t, progress.StatusFetching, s.Snapshot().Status)

	items := []QueueItem{
		{RenamedName: "a"},
		{RenamedName: "b", SkipReason: "Blacklisted word: cam"},
		{RenamedName: "c", Premium: true},
	}
	s.SetQueue(items, DefaultPremiumLimit)

	st := s.Snapshot()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.PremiumCount)
	assert.Equal(t, 2, st.ToProcess)
	require.Len(t, st.Queue, 2)
	assert.Equal(t, "b", st.Queue[0].Name)

	s.Advance(1)
	assert.Len(t, s.Snapshot().Queue, 1)

	s.Advance(2)
	assert.Empty(t, s.Snapshot().Queue)

	s.Finish()
	st = s.Snapshot()
	assert.Equal(t, progress.StatusIdle, st.Status)
	assert.Empty(t, st.Queue)
}

func TestSession_ProgressAfterCancel(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession()
	s.now = func() time.Time { return clock }

	s.Begin()
	s.StartDownload(1, "a.mkv", 1000)

	clock = clock.Add(time.Second)
	s.DownloadProgress(500, 1000)
	st := s.Snapshot()
	assert.Equal(t, int64(500), st.CurrentSize)
	assert.InDelta(t, 500.0, st.DownloadSpeed, 0.001)

	s.Cancel()
	clock = clock.Add(time.Second)
	s.DownloadProgress(900, 1000)

	st = s.Snapshot()
	assert.True(t, st.Cancelled)
	assert.Equal(t, int64(500), st.CurrentSize, "updates are ignored once cancelled")

	s.Begin()
	assert.False(t, s.Cancelled(), "a new run clears the flag")
}

func TestSession_UploadKeepsDiskSizeWhenTotalUnknown(t *testing.T) {
	s := NewSession()
	s.Begin()
	s.StartUpload(2048)

	s.UploadProgress(100, 0)
	st := s.Snapshot()
	assert.Equal(t, progress.StatusUploading, st.Status)
	assert.Equal(t, int64(2048), st.TotalSize)
	assert.Equal(t, int64(100), st.CurrentSize)

	s.ResetUpload()
	assert.Equal(t, int64(0), s.Snapshot().CurrentSize)
}

func TestMultiSink(t *testing.T) {
	var got []string
	ok := SinkFunc(func(_ context.Context, text string) error {
		got = append(got, text)
		return nil
	})
	failing := SinkFunc(func(context.Context, string) error { return errors.New("MESSAGE_ID_INVALID") })

	err := MultiSink{failing, nil, ok}.UpdateStatus(context.Background(), "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MESSAGE_ID_INVALID")
	assert.Equal(t, []string{"hi"}, got, "later sinks still run")
}

type failingPublisher struct{}

func (failingPublisher) PublishTransferCompleted(context.Context, CompletedEvent) error {
	return errors.New("nats: no responders available")
}

func TestPublishers(t *testing.T) {
	pub := &fakePublisher{}

	err := Publishers{failingPublisher{}, nil, pub}.PublishTransferCompleted(context.Background(), CompletedEvent{Processed: 2})

	require.Error(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, 2, pub.events[0].Processed)
}

// stubProcessor blocks until released or cancelled.
type stubProcessor struct {
	session *Session
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{session: NewSession(), release: make(chan struct{})}
}

func (p *stubProcessor) ProcessRange(ctx context.Context, req Request, _ StatusSink) Report {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	p.session.Begin()
	defer p.session.Finish()

	for !p.session.Cancelled() {
		select {
		case <-p.release:
			return Report{SourceChannel: -1001, Total: 3, Processed: 2, Skipped: 1}
		case <-ctx.Done():
			return Report{Cancelled: true}
		case <-time.After(time.Millisecond):
		}
	}
	return Report{Cancelled: true}
}

func (p *stubProcessor) Session() *Session { return p.session }

type fakePublisher struct {
	mu     sync.Mutex
	events []CompletedEvent
}

func (f *fakePublisher) PublishTransferCompleted(_ context.Context, e CompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func TestManager_SingleJob(t *testing.T) {
	proc := newStubProcessor()
	pub := &fakePublisher{}
	m := NewManager(proc, pub, nil)

	done := make(chan Report, 1)
	job, err := m.Start(context.Background(), Request{StartLink: "s", EndLink: "e"}, nil, func(_ Job, r Report) {
		done <- r
	})
	require.NoError(t, err)
	assert.Equal(t, "s", job.StartLink)
	assert.NotNil(t, m.Current())

	_, err = m.Start(context.Background(), Request{}, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(proc.release)

	select {
	case r := <-done:
		assert.Equal(t, 2, r.Processed)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}

	require.Eventually(t, func() bool { return m.Current() == nil }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, job.ID, pub.events[0].JobID)
	assert.Equal(t, int64(-1001), pub.events[0].SourceChannel)
	assert.Empty(t, pub.events[0].Error)
}

func TestManager_Cancel(t *testing.T) {
	proc := newStubProcessor()
	m := NewManager(proc, nil, nil)

	assert.False(t, m.Cancel(), "nothing running")

	done := make(chan Report, 1)
	_, err := m.Start(context.Background(), Request{}, nil, func(_ Job, r Report) { done <- r })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.Snapshot().Status == progress.StatusFetching
	}, time.Second, time.Millisecond)

	assert.True(t, m.Cancel())

	select {
	case r := <-done:
		assert.True(t, r.Cancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("job ignored cancel")
	}
}

func TestManager_StopWaits(t *testing.T) {
	proc := newStubProcessor()
	m := NewManager(proc, nil, nil)

	_, err := m.Start(context.Background(), Request{}, nil, nil)
	require.NoError(t, err)

	m.Stop()
	assert.Nil(t, m.Current())

	// safe with nothing running
	m.Stop()
}

func TestManager_JobOutlivesStartContext(t *testing.T) {
	proc := newStubProcessor()
	m := NewManager(proc, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.Start(ctx, Request{}, nil, nil)
	require.NoError(t, err)
	cancel()

	time.Sleep(10 * time.Millisecond)
	assert.NotNil(t, m.Current())

	close(proc.release)
	require.Eventually(t, func() bool { return m.Current() == nil }, time.Second, 5*time.Millisecond)
}
