package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/settings"
	"github.com/blockedby/tg-relay/internal/telegram"
	"github.com/blockedby/tg-relay/internal/transfer"
)

// cmdProcess starts a transfer of the saved range, or of the two links
// given as arguments, which are saved first.
func (b *Bot) cmdProcess(ctx context.Context, cmd Command) error {
	if b.deps.Transfers.Current() != nil {
		return b.reply(ctx, cmd, "⚠️ A transfer is already running. Use /cancel or the button to stop it.")
	}

	var s *settings.Settings
	var err error

	switch args := strings.Fields(cmd.Args); len(args) {
	case 0:
		s, err = b.deps.Settings.Load(ctx)
	case 2:
		s, err = b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
			start, end, err := expandRange(s.SourceChannelID, args[0], args[1])
			if err != nil {
				return err
			}
			s.StartLink, s.EndLink = start, end
			return nil
		})
	default:
		return b.reply(ctx, cmd, "Usage: <code>/process [start_link end_link]</code>")
	}
	if err != nil {
		return err
	}

	if s.StartLink == "" || s.EndLink == "" {
		return b.reply(ctx, cmd, "❌ No range set. Use <code>/range &lt;start_link&gt; &lt;end_link&gt;</code> first.")
	}
	if len(s.DestinationIDs) == 0 {
		return b.reply(ctx, cmd, "❌ No destinations set. Use <code>/dest add &lt;channel id&gt;</code> first.")
	}

	msgID, err := b.deps.Chat.SendHTML(ctx, cmd.ChatID, progress.FetchingText)
	if err != nil {
		return fmt.Errorf("send status message: %w", err)
	}
	status := telegram.NewStatusMessage(b.deps.Chat, cmd.ChatID, msgID)

	req := transfer.Request{
		StartLink: s.StartLink,
		EndLink:   s.EndLink,
		Options:   s.Options(b.opts.Runtime),
	}
	sink := transfer.MultiSink{status, b.deps.Sink}

	job, err := b.deps.Transfers.Start(b.baseCtx, req, sink, func(job transfer.Job, report transfer.Report) {
		b.finish(job, report, status)
	})
	if errors.Is(err, transfer.ErrAlreadyRunning) {
		return status.Finish(ctx, "⚠️ A transfer is already running.")
	}
	if err != nil {
		_ = status.Finish(ctx, "❌ Error: "+escape(err.Error()))
		return err
	}

	b.log.Info().
		Str("job_id", job.ID.String()).
		Str("start", s.StartLink).
		Str("end", s.EndLink).
		Int("destinations", len(req.Options.Destinations)).
		Msg("transfer started")
	return nil
}

// finish replaces the live status with the summary and copies it to the
// log channel.
func (b *Bot) finish(job transfer.Job, report transfer.Report, status *telegram.StatusMessage) {
	ctx, cancel := b.detached()
	defer cancel()

	text := report.Text()
	if err := status.Finish(ctx, text); err != nil {
		b.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("final status edit failed")
	}
	if b.deps.Sink != nil {
		_ = b.deps.Sink.UpdateStatus(ctx, text)
	}

	if b.opts.LogChannelID == 0 {
		return
	}
	summary := fmt.Sprintf("📋 <b>Transfer log</b>\n🔗 %s\n🔗 %s\n\n%s",
		escape(job.StartLink), escape(job.EndLink), text)
	if _, err := b.deps.Chat.SendHTML(ctx, b.opts.LogChannelID, summary); err != nil {
		b.log.Warn().Err(err).Int64("log_channel", b.opts.LogChannelID).Msg("log channel copy failed")
	}
}

// expandRange validates two range ends. A bare message id is turned into
// a link on the source channel.
func expandRange(sourceID int64, start, end string) (string, string, error) {
	var err error
	if start, err = expandLink(sourceID, start); err != nil {
		return "", "", err
	}
	if end, err = expandLink(sourceID, end); err != nil {
		return "", "", err
	}
	return start, end, nil
}

func expandLink(sourceID int64, arg string) (string, error) {
	if msgID, err := strconv.Atoi(arg); err == nil {
		bare, ok := telegram.BareChannelID(sourceID)
		if !ok {
			return "", fmt.Errorf("%w: message id %d needs a source channel, set one with /source", transfer.ErrInvalidLink, msgID)
		}
		if msgID <= 0 {
			return "", fmt.Errorf("%w: message id %d", transfer.ErrInvalidLink, msgID)
		}
		return fmt.Sprintf("https://t.me/c/%d/%d", bare, msgID), nil
	}

	if _, err := transfer.ParseLink(arg); err != nil {
		return "", err
	}
	return arg, nil
}
