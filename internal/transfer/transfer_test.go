package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-relay/internal/naming"
	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/telegram"
)

// fakeMessenger serves posts from memory and records every transfer.
type fakeMessenger struct {
	mu        sync.Mutex
	posts     map[int]*telegram.Message
	usernames map[string]int64

	onFetch     func(messageID int)
	fetchErr    map[int]error
	onDownload  func(msg *telegram.Message)
	uploadErr   func(chatID int64) error
	downloadErr error

	fetched   []int
	downloads []string
	uploads   []string // "<chat>:<file>"
	paths     []string
}

func newFakeMessenger(posts ...*telegram.Message) *fakeMessenger {
	m := &fakeMessenger{posts: map[int]*telegram.Message{}, usernames: map[string]int64{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func doc(id int, name string, size int64) *telegram.Message {
	return &telegram.Message{
		ID:       id,
		Caption:  "caption " + name,
		Document: &telegram.Media{FileName: name, FileSize: size},
	}
}

func (m *fakeMessenger) ResolveUsername(_ context.Context, username string) (int64, error) {
	id, ok := m.usernames[username]
	if !ok {
		return 0, errors.New("USERNAME_NOT_OCCUPIED")
	}
	return id, nil
}

func (m *fakeMessenger) FetchMessage(_ context.Context, _ int64, messageID int) (*telegram.Message, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, messageID)
	m.mu.Unlock()

	if m.onFetch != nil {
		m.onFetch(messageID)
	}
	if err := m.fetchErr[messageID]; err != nil {
		return nil, err
	}
	return m.posts[messageID], nil
}

func (m *fakeMessenger) DownloadMedia(_ context.Context, msg *telegram.Message, path string, progress telegram.ProgressFunc) (string, error) {
	m.mu.Lock()
	m.downloads = append(m.downloads, filepath.Base(path))
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.onDownload != nil {
		m.onDownload(msg)
	}
	if m.downloadErr != nil {
		return "", m.downloadErr
	}

	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		return "", err
	}
	progress(4, 4)
	return path, nil
}

func (m *fakeMessenger) UploadDocument(_ context.Context, chatID int64, upload telegram.Upload, progress telegram.ProgressFunc) error {
	if m.uploadErr != nil {
		if err := m.uploadErr(chatID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.uploads = append(m.uploads, fmt.Sprintf("%d:%s", chatID, upload.FileName))
	m.mu.Unlock()

	progress(4, 4)
	return nil
}

// recordingSink keeps every text pushed to it.
type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) UpdateStatus(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func testRequest(t *testing.T, opts Options) Request {
	t.Helper()
	if opts.DownloadDir == "" {
		opts.DownloadDir = t.TempDir()
	}
	if opts.Destinations == nil {
		opts.Destinations = []int64{-1001, -1002}
	}
	return Request{
		StartLink: "https://t.me/c/1234567890/10",
		EndLink:   "https://t.me/c/1234567890/13",
		Options:   opts,
	}
}

func TestProcessRange_RelaysEligibleItems(t *testing.T) {
	m := newFakeMessenger(
		doc(10, "First_Movie.mkv", 100),
		doc(11, "Cam_Rip.mkv", 100),
		doc(12, "Second_Movie.mkv", 100),
		// 13 does not exist
	)

	var indexes []int
	o := NewOrchestrator(m, nil, nil)
	m.onDownload = func(*telegram.Message) {
		indexes = append(indexes, o.Session().Snapshot().CurrentIndex)
	}

	req := testRequest(t, Options{Filter: naming.Filter{Blacklist: []string{"cam"}}})
	report := o.ProcessRange(context.Background(), req, nil)

	require.NoError(t, report.Err)
	assert.Equal(t, NormalizeChannelID(1234567890), report.SourceChannel)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Cancelled)

	// the skipped middle item does not consume an index
	assert.Equal(t, []int{1, 2}, indexes)
	assert.Equal(t, []string{"First Movie.mkv", "Second Movie.mkv"}, m.downloads)
	assert.Len(t, m.uploads, 4)
	assert.Contains(t, m.uploads, "-1002:Second Movie.mkv")

	for _, p := range m.paths {
		assert.NoFileExists(t, p, "downloads are removed")
	}

	st := o.Session().Snapshot()
	assert.Equal(t, progress.StatusIdle, st.Status)
	assert.Empty(t, st.Queue)
	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, 1, st.Skipped)
	assert.LessOrEqual(t, st.Processed+st.Skipped, st.Total)
}

func TestProcessRange_CancelStopsNewItems(t *testing.T) {
	m := newFakeMessenger(
		doc(10, "a.mkv", 10),
		doc(11, "b.mkv", 10),
		doc(12, "c.mkv", 10),
	)
	o := NewOrchestrator(m, nil, nil)
	m.onDownload = func(*telegram.Message) { o.Session().Cancel() }

	report := o.ProcessRange(context.Background(), testRequest(t, Options{}), nil)

	require.NoError(t, report.Err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Failed, "cancellation is not a failure")
	assert.Len(t, m.downloads, 1)
	assert.Empty(t, m.uploads)
	assert.NoFileExists(t, m.paths[0])
	assert.Contains(t, report.Text(), "Cancelled")
}

func TestProcessRange_ContextCancelCountsAsCancel(t *testing.T) {
	m := newFakeMessenger(doc(10, "a.mkv", 10), doc(11, "b.mkv", 10))

	ctx, cancel := context.WithCancel(context.Background())
	m.onDownload = func(*telegram.Message) { cancel() }

	o := NewOrchestrator(m, nil, nil)
	report := o.ProcessRange(ctx, testRequest(t, Options{}), nil)

	assert.True(t, report.Cancelled)
	assert.Len(t, m.downloads, 1)
}

func TestProcessRange_FailedItems(t *testing.T) {
	t.Run("every destination fails", func(t *testing.T) {
		m := newFakeMessenger(doc(10, "a.mkv", 10), doc(11, "b.mkv", 10))
		m.uploadErr = func(int64) error { return errors.New("CHAT_WRITE_FORBIDDEN") }

		report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{}), nil)

		assert.Equal(t, 0, report.Processed)
		assert.Equal(t, 2, report.Failed)
		assert.Contains(t, report.Text(), "Failed: 2")
	})

	t.Run("one destination is enough", func(t *testing.T) {
		m := newFakeMessenger(doc(10, "a.mkv", 10))
		m.uploadErr = func(chat int64) error {
			if chat == -1001 {
				return errors.New("CHAT_WRITE_FORBIDDEN")
			}
			return nil
		}

		report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{}), nil)

		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, []string{"-1002:a.mkv"}, m.uploads)
	})

	t.Run("download error", func(t *testing.T) {
		m := newFakeMessenger(doc(10, "a.mkv", 10))
		m.downloadErr = errors.New("FILE_REFERENCE_EXPIRED")

		report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{}), nil)

		assert.Equal(t, 1, report.Failed)
		assert.Empty(t, m.uploads)
	})
}

func TestProcessRange_PremiumItems(t *testing.T) {
	big := doc(10, "Huge.mkv", DefaultPremiumLimit+1)

	t.Run("skipped by default", func(t *testing.T) {
		m := newFakeMessenger(big, doc(11, "small.mkv", 10))
		o := NewOrchestrator(m, nil, nil)

		report := o.ProcessRange(context.Background(), testRequest(t, Options{}), nil)

		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, []string{"small.mkv"}, m.downloads)
	})

	t.Run("processed when allowed", func(t *testing.T) {
		m := newFakeMessenger(big)
		report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{AllowPremium: true}), nil)

		assert.Equal(t, 0, report.Skipped)
		assert.Equal(t, 1, report.Processed)
	})
}

func TestProcessRange_Errors(t *testing.T) {
	t.Run("no media in range", func(t *testing.T) {
		m := newFakeMessenger(&telegram.Message{ID: 10, Caption: "text only"})
		report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{}), nil)

		assert.ErrorIs(t, report.Err, ErrNoMedia)
		assert.Equal(t, "❌ No files found in range", report.Text())
	})

	t.Run("malformed link", func(t *testing.T) {
		req := testRequest(t, Options{})
		req.StartLink = "not a link"

		report := NewOrchestrator(newFakeMessenger(), nil, nil).ProcessRange(context.Background(), req, nil)

		assert.ErrorIs(t, report.Err, ErrInvalidLink)
		assert.Contains(t, report.Text(), "❌ Error: ")
	})

	t.Run("reversed range", func(t *testing.T) {
		req := testRequest(t, Options{})
		req.StartLink, req.EndLink = req.EndLink, req.StartLink

		report := NewOrchestrator(newFakeMessenger(), nil, nil).ProcessRange(context.Background(), req, nil)
		assert.ErrorIs(t, report.Err, ErrInvalidRange)
	})

	t.Run("no destinations", func(t *testing.T) {
		req := testRequest(t, Options{Destinations: []int64{}})
		report := NewOrchestrator(newFakeMessenger(), nil, nil).ProcessRange(context.Background(), req, nil)
		assert.ErrorIs(t, report.Err, ErrNoDestinations)
	})
}

type panickingMessenger struct{ *fakeMessenger }

func (panickingMessenger) FetchMessage(context.Context, int64, int) (*telegram.Message, error) {
	panic(strings.Repeat("boom ", 50))
}

func TestProcessRange_RecoversPanic(t *testing.T) {
	o := NewOrchestrator(panickingMessenger{newFakeMessenger()}, nil, nil)

	report := o.ProcessRange(context.Background(), testRequest(t, Options{}), nil)

	require.Error(t, report.Err)
	text := report.Text()
	assert.Contains(t, text, "❌ Error: boom")
	assert.LessOrEqual(t, len([]rune(text)), len([]rune("❌ Error: "))+maxErrorLength)
	assert.Equal(t, progress.StatusIdle, o.Session().Snapshot().Status)
}

func TestProcessRange_ResolvesUsername(t *testing.T) {
	m := newFakeMessenger(doc(5, "a.mkv", 10))
	m.usernames["moviechannel"] = -1009

	req := testRequest(t, Options{})
	req.StartLink = "https://t.me/moviechannel/5"
	req.EndLink = "https://t.me/moviechannel/5"

	report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), req, nil)

	require.NoError(t, report.Err)
	assert.Equal(t, int64(-1009), report.SourceChannel)
	assert.Equal(t, 1, report.Processed)
}

type staticThumbs string

func (s staticThumbs) Current() string { return string(s) }

func TestProcessRange_CaptionAndThumbnail(t *testing.T) {
	var got telegram.Upload
	m := newFakeMessenger(doc(10, "Movie_Tamil.mkv", 10))

	capture := &captureMessenger{fakeMessenger: m, got: &got}
	req := testRequest(t, Options{
		Destinations:    []int64{-1001},
		CaptionTemplate: "{filename} [{filesize}] {language} {filecaption} {unknown}",
	})

	report := NewOrchestrator(capture, staticThumbs("/thumbs/t.jpg"), nil).ProcessRange(context.Background(), req, nil)

	require.Equal(t, 1, report.Processed)
	assert.Equal(t, "Movie Tamil.mkv [4.0B] Tamil caption Movie_Tamil.mkv {unknown}", got.Caption)
	assert.Equal(t, "/thumbs/t.jpg", got.Thumbnail)
}

type captureMessenger struct {
	*fakeMessenger
	got *telegram.Upload
}

func (c *captureMessenger) UploadDocument(ctx context.Context, chatID int64, upload telegram.Upload, p telegram.ProgressFunc) error {
	*c.got = upload
	return c.fakeMessenger.UploadDocument(ctx, chatID, upload, p)
}

func TestProcessRange_PushesStatus(t *testing.T) {
	m := newFakeMessenger(doc(10, "a.mkv", 10), doc(11, "b.mkv", 10))
	m.onDownload = func(*telegram.Message) { time.Sleep(30 * time.Millisecond) }

	sink := &recordingSink{}
	req := testRequest(t, Options{RefreshInterval: 5 * time.Millisecond})

	report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), req, sink)
	require.NoError(t, report.Err)

	texts := sink.all()
	require.NotEmpty(t, texts)

	sawDownload := false
	for i, text := range texts {
		if i > 0 {
			assert.NotEqual(t, texts[i-1], text, "unchanged renders are not pushed")
		}
		if strings.Contains(text, "📥 DOWNLOADING") {
			sawDownload = true
		}
	}
	assert.True(t, sawDownload)
}

func TestProcessRange_RefreshStopsAfterRun(t *testing.T) {
	m := newFakeMessenger(doc(10, "a.mkv", 10))
	sink := &recordingSink{}

	report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{RefreshInterval: time.Millisecond}), sink)
	require.NoError(t, report.Err)

	n := len(sink.all())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sink.all(), n)
}

func TestProcessRange_FetchErrorDropsItem(t *testing.T) {
	m := newFakeMessenger(
		doc(10, "a.mkv", 10),
		doc(11, "b.mkv", 10),
		doc(12, "c.mkv", 10),
	)
	m.fetchErr = map[int]error{11: errors.New("CHANNEL_PRIVATE")}

	report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), testRequest(t, Options{}), nil)

	require.NoError(t, report.Err)
	assert.Equal(t, []int{10, 11, 12, 13}, m.fetched, "the range is fetched to the end")
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"a.mkv", "c.mkv"}, m.downloads)
}

func TestProcessRange_CancelWhileFetching(t *testing.T) {
	m := newFakeMessenger(
		doc(10, "a.mkv", 10),
		doc(11, "b.mkv", 10),
		doc(12, "c.mkv", 10),
	)
	o := NewOrchestrator(m, nil, nil)
	m.onFetch = func(id int) {
		if id == 11 {
			o.Session().Cancel()
		}
	}

	report := o.ProcessRange(context.Background(), testRequest(t, Options{}), nil)

	require.NoError(t, report.Err)
	assert.Equal(t, []int{10, 11}, m.fetched, "fetching stops at the next id")
	assert.True(t, report.Cancelled)
	assert.Equal(t, 2, report.Total, "items gathered before the cancel are kept")
	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, m.downloads)
	assert.Contains(t, report.Text(), "Cancelled")
}

// flakySink fails or panics on its first calls, then records.
type flakySink struct {
	recordingSink
	mu     sync.Mutex
	calls  int
	fail   int
	panics bool
}

func (s *flakySink) UpdateStatus(ctx context.Context, text string) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n <= s.fail {
		if s.panics {
			panic("MESSAGE_NOT_MODIFIED")
		}
		return errors.New("MESSAGE_ID_INVALID")
	}
	return s.recordingSink.UpdateStatus(ctx, text)
}

func (s *flakySink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestProcessRange_StatusErrorsDoNotStopRun(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
	}{
		{"sink error", false},
		{"sink panic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeMessenger(doc(10, "a.mkv", 10))
			m.onDownload = func(*telegram.Message) { time.Sleep(30 * time.Millisecond) }

			sink := &flakySink{fail: 1, panics: tt.panics}
			req := testRequest(t, Options{RefreshInterval: 5 * time.Millisecond})

			report := NewOrchestrator(m, nil, nil).ProcessRange(context.Background(), req, sink)

			require.NoError(t, report.Err)
			assert.Equal(t, 1, report.Processed)
			assert.GreaterOrEqual(t, sink.callCount(), 2, "the next tick pushes again")
			assert.NotEmpty(t, sink.all(), "a later push succeeds")
		})
	}
}
