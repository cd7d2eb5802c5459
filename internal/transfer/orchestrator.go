package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/logger"
	"github.com/blockedby/tg-relay/internal/naming"
	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/telegram"
)

// errors
var (
	ErrInvalidLink    = errors.New("invalid message link")
	ErrInvalidRange   = errors.New("end message comes before start message")
	ErrNoMedia        = errors.New("no files found in range")
	ErrNoDestinations = errors.New("no destination chats configured")
)

const (
	// DefaultPremiumLimit is the largest file a non-premium account can upload.
	DefaultPremiumLimit int64 = 2 * 1024 * 1024 * 1024

	DefaultRefreshInterval = 3 * time.Second
	DefaultDownloadDir     = "downloads"

	// premium files are skipped with this reason unless allowed
	premiumSkipReason = "Premium"

	maxErrorLength = 100
)

// Messenger is the chat API a transfer needs.
type Messenger interface {
	// ResolveUsername returns the bot-api id of a public channel.
	ResolveUsername(ctx context.Context, username string) (int64, error)
	// FetchMessage returns nil without error when the post does not exist.
	FetchMessage(ctx context.Context, channelID int64, messageID int) (*telegram.Message, error)
	// DownloadMedia writes the post's media to path and returns the path written.
	DownloadMedia(ctx context.Context, msg *telegram.Message, path string, progress telegram.ProgressFunc) (string, error)
	UploadDocument(ctx context.Context, chatID int64, upload telegram.Upload, progress telegram.ProgressFunc) error
}

// StatusSink receives rendered status text.
type StatusSink interface {
	UpdateStatus(ctx context.Context, text string) error
}

// Thumbnails supplies the thumbnail attached to uploads.
type Thumbnails interface {
	// Current returns the thumbnail path, or "" when none is set.
	Current() string
}

// Options configure a single run. They are captured when the run starts.
type Options struct {
	Filter          naming.Filter
	Rules           naming.Rules
	Destinations    []int64
	CaptionTemplate string
	AllowPremium    bool
	PremiumLimit    int64
	DownloadDir     string
	RefreshInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.PremiumLimit <= 0 {
		o.PremiumLimit = DefaultPremiumLimit
	}
	if o.DownloadDir == "" {
		o.DownloadDir = DefaultDownloadDir
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	return o
}

// Request asks for every media post between two links, both inclusive.
type Request struct {
	StartLink string
	EndLink   string
	Options   Options
}

// Report is the outcome of a run.
type Report struct {
	SourceChannel int64
	Total         int
	Processed     int
	Skipped       int
	Failed        int
	Cancelled     bool
	Err           error
}

// Text is the summary shown to the user when the run ends.
func (r Report) Text() string {
	if r.Err != nil {
		if errors.Is(r.Err, ErrNoMedia) {
			return "❌ No files found in range"
		}
		return "❌ Error: " + truncateRunes(r.Err.Error(), maxErrorLength)
	}

	header := "✅ <b>Complete!</b>"
	if r.Cancelled {
		header = "🛑 <b>Cancelled</b>"
	}
	return fmt.Sprintf("%s\n\n📊 <b>Results:</b>\n✅ Processed: %d\n⏭️ Skipped: %d\n❌ Failed: %d",
		header, r.Processed, r.Skipped, r.Failed)
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomeCancelled
)

// Orchestrator runs transfers one at a time against a shared Session.
type Orchestrator struct {
	messenger Messenger
	thumbs    Thumbnails
	session   *Session
	log       *logger.Logger
}

// NewOrchestrator creates an orchestrator. thumbs may be nil.
func NewOrchestrator(m Messenger, thumbs Thumbnails, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Get()
	}
	return &Orchestrator{
		messenger: m,
		thumbs:    thumbs,
		session:   NewSession(),
		log:       log.WithComponent("transfer"),
	}
}

// Session returns the session the orchestrator writes to.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// ProcessRange relays every media post of the requested range to each
// destination. It blocks until the run ends. Status text is pushed to
// sink while the run is active; sink may be nil.
func (o *Orchestrator) ProcessRange(ctx context.Context, req Request, sink StatusSink) (report Report) {
	o.session.Begin()
	defer o.session.Finish()

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("transfer aborted")
			report = Report{Err: fmt.Errorf("%v", r)}
		}
	}()

	opts := req.Options.withDefaults()
	if len(opts.Destinations) == 0 {
		return Report{Err: ErrNoDestinations}
	}

	stop := o.startRefresh(ctx, sink, opts.RefreshInterval)
	defer stop()

	channelID, startID, endID, err := o.resolveRange(ctx, req.StartLink, req.EndLink)
	if err != nil {
		return Report{Err: err}
	}

	items := o.buildQueue(ctx, channelID, startID, endID, opts)
	if len(items) == 0 {
		if o.session.Cancelled() {
			return Report{SourceChannel: channelID, Cancelled: true}
		}
		return Report{SourceChannel: channelID, Err: ErrNoMedia}
	}

	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return Report{SourceChannel: channelID, Err: fmt.Errorf("create download dir: %w", err)}
	}

	o.session.SetQueue(items, opts.PremiumLimit)

	o.log.Info().
		Int64("channel", channelID).
		Int("start", startID).
		Int("end", endID).
		Int("found", len(items)).
		Msg("transfer started")

	report = o.run(ctx, items, opts)
	stop()

	report.SourceChannel = channelID

	o.log.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Bool("cancelled", report.Cancelled).
		Msg("transfer finished")

	return report
}

func (o *Orchestrator) resolveRange(ctx context.Context, startLink, endLink string) (channelID int64, startID, endID int, err error) {
	start, err := ParseLink(startLink)
	if err != nil {
		return 0, 0, 0, err
	}
	end, err := ParseLink(endLink)
	if err != nil {
		return 0, 0, 0, err
	}
	if end.MessageID < start.MessageID {
		return 0, 0, 0, ErrInvalidRange
	}

	channelID = start.ChannelID
	if channelID == 0 {
		channelID, err = o.messenger.ResolveUsername(ctx, start.Username)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("resolve @%s: %w", start.Username, err)
		}
	}

	return channelID, start.MessageID, end.MessageID, nil
}

// buildQueue fetches every post in the range. Posts that cannot be
// fetched or carry no media are left out; filtered posts stay in the
// queue with a skip reason.
func (o *Orchestrator) buildQueue(ctx context.Context, channelID int64, startID, endID int, opts Options) []QueueItem {
	var items []QueueItem

	for id := startID; id <= endID; id++ {
		if o.cancelled(ctx) {
			break
		}

		msg, err := o.messenger.FetchMessage(ctx, channelID, id)
		if err != nil {
			o.log.Debug().Err(err).Int("message_id", id).Msg("fetch failed")
			continue
		}
		if msg == nil || !naming.HasDownloadableMedia(msg) {
			continue
		}

		original := naming.ExtractFileName(msg)
		size := naming.FileSize(msg)
		item := QueueItem{
			SourceMessageID: id,
			Message:         msg,
			OriginalName:    original,
			RenamedName:     opts.Rules.Rename(original),
			SizeBytes:       size,
			Premium:         size > opts.PremiumLimit,
		}

		if ok, reason := opts.Filter.ShouldProcess(original); !ok {
			item.SkipReason = reason
		} else if item.Premium && !opts.AllowPremium {
			item.SkipReason = premiumSkipReason
		}

		items = append(items, item)
	}

	return items
}

func (o *Orchestrator) run(ctx context.Context, items []QueueItem, opts Options) Report {
	report := Report{Total: len(items)}
	index := 0

loop:
	for i, item := range items {
		if o.cancelled(ctx) {
			break
		}

		o.session.Advance(i)

		if !item.Eligible() {
			continue
		}

		index++
		o.session.StartDownload(index, item.RenamedName, item.SizeBytes)

		switch o.transferItem(ctx, item, opts) {
		case outcomeDone:
			report.Processed++
			o.session.SetProcessed(report.Processed)
		case outcomeFailed:
			report.Failed++
		case outcomeCancelled:
			break loop
		}
	}

	// skipped counts every filtered item, even those the loop never reached
	report.Skipped = lo.CountBy(items, func(q QueueItem) bool { return !q.Eligible() })
	report.Cancelled = o.session.Cancelled()
	return report
}

func (o *Orchestrator) transferItem(ctx context.Context, item QueueItem, opts Options) outcome {
	log := o.log.With().
		Int("message_id", item.SourceMessageID).
		Str("file", item.RenamedName).
		Logger()

	path := filepath.Join(opts.DownloadDir, localFileName(item.RenamedName))

	local, err := o.messenger.DownloadMedia(ctx, item.Message, path, o.session.DownloadProgress)
	if local == "" {
		local = path
	}
	defer removeFile(local)

	if err != nil {
		if o.cancelled(ctx) {
			return outcomeCancelled
		}
		log.Warn().Err(err).Msg("download failed")
		return outcomeFailed
	}
	if o.cancelled(ctx) {
		return outcomeCancelled
	}

	size := fileSize(local)
	o.session.StartUpload(size)

	language, subtitle := progress.LanguageAndSubtitle(item.OriginalName)
	upload := telegram.Upload{
		Path:     local,
		FileName: item.RenamedName,
		Caption: BuildCaption(opts.CaptionTemplate, CaptionFields{
			FileName:    item.RenamedName,
			FileSize:    progress.FormatBytes(float64(size)),
			Language:    language,
			Subtitle:    subtitle,
			FileCaption: item.Message.Caption,
		}),
		Thumbnail: o.thumbnail(),
	}

	delivered := 0
	for _, dest := range opts.Destinations {
		if o.cancelled(ctx) {
			break
		}

		o.session.ResetUpload()
		if err := o.messenger.UploadDocument(ctx, dest, upload, o.session.UploadProgress); err != nil {
			if o.cancelled(ctx) {
				break
			}
			log.Warn().Err(err).Int64("destination", dest).Msg("upload failed")
			continue
		}
		delivered++
	}

	switch {
	case o.cancelled(ctx):
		return outcomeCancelled
	case delivered == 0:
		return outcomeFailed
	}

	log.Debug().Int("destinations", delivered).Msg("item relayed")
	return outcomeDone
}

// cancelled polls the cancel flag. A done context counts as a cancel.
func (o *Orchestrator) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		o.session.Cancel()
	}
	return o.session.Cancelled()
}

func (o *Orchestrator) thumbnail() string {
	if o.thumbs == nil {
		return ""
	}
	return o.thumbs.Current()
}

// localFileName keeps a renamed file inside the download directory.
func localFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Get().Debug().Err(err).Str("path", path).Msg("remove download")
	}
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
