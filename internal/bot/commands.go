package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/settings"
	"github.com/blockedby/tg-relay/internal/telegram"
	"github.com/blockedby/tg-relay/internal/transfer"
)

func (b *Bot) cmdStart(ctx context.Context, cmd Command) error {
	return b.reply(ctx, cmd, startText)
}

func (b *Bot) cmdHelp(ctx context.Context, cmd Command) error {
	return b.reply(ctx, cmd, helpText)
}

func (b *Bot) cmdSettings(ctx context.Context, cmd Command) error {
	s, err := b.deps.Settings.Load(ctx)
	if err != nil {
		return err
	}
	return b.reply(ctx, cmd, renderSettings(s, b.deps.Thumbnails.Exists(), b.opts.Runtime.PremiumLimit))
}

func (b *Bot) cmdStatus(ctx context.Context, cmd Command) error {
	if b.deps.Transfers.Current() == nil {
		return b.reply(ctx, cmd, progress.ReadyText)
	}
	return b.reply(ctx, cmd, progress.Render(b.deps.Transfers.Snapshot()))
}

func (b *Bot) cmdRange(ctx context.Context, cmd Command) error {
	args := strings.Fields(cmd.Args)
	if len(args) != 2 {
		return b.reply(ctx, cmd, "Usage: <code>/range &lt;start_link&gt; &lt;end_link&gt;</code>")
	}

	s, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
		start, end, err := expandRange(s.SourceChannelID, args[0], args[1])
		if err != nil {
			return err
		}
		s.StartLink, s.EndLink = start, end
		return nil
	})
	if err != nil {
		return err
	}

	return b.reply(ctx, cmd, fmt.Sprintf("✅ Range saved\n\n🔗 %s\n🔗 %s\n\nSend /process to start.",
		escape(s.StartLink), escape(s.EndLink)))
}

func (b *Bot) cmdCancel(ctx context.Context, cmd Command) error {
	if !b.deps.Transfers.Cancel() {
		return b.reply(ctx, cmd, "ℹ️ No transfer running")
	}
	return b.reply(ctx, cmd, "🛑 Cancelling... the current file stops at the next checkpoint.")
}

func (b *Bot) cmdSource(ctx context.Context, cmd Command) error {
	arg := strings.TrimSpace(cmd.Args)
	if arg == "" {
		return b.reply(ctx, cmd, "Usage: <code>/source &lt;channel id | @username | off&gt;</code>")
	}

	var id int64
	if !isOff(arg) {
		var err error
		if id, err = b.resolveChatID(ctx, arg); err != nil {
			return err
		}
	}

	if _, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
		s.SourceChannelID = id
		return nil
	}); err != nil {
		return err
	}

	if id == 0 {
		return b.reply(ctx, cmd, "✅ Source cleared")
	}
	return b.reply(ctx, cmd, fmt.Sprintf("✅ Source set to <code>%d</code>", id))
}

func (b *Bot) cmdDest(ctx context.Context, cmd Command) error {
	action, rest := splitAction(cmd.Args)

	var ids []int64
	if action == "add" || action == "remove" {
		for _, arg := range strings.FieldsFunc(rest, isListSeparator) {
			id, err := b.resolveChatID(ctx, arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return b.reply(ctx, cmd, "Usage: <code>/dest add|remove &lt;channel ids&gt;</code>")
		}
	}

	s, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
		switch action {
		case "add":
			s.DestinationIDs = lo.Uniq(append(s.DestinationIDs, ids...))
		case "remove":
			s.DestinationIDs = lo.Without(s.DestinationIDs, ids...)
		case "clear":
			s.DestinationIDs = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	return b.reply(ctx, cmd, "📤 <b>Destinations</b>\n"+formatIDs(s.DestinationIDs))
}

type wordList func(s *settings.Settings) *[]string

func whitelistOf(s *settings.Settings) *[]string    { return &s.Whitelist }
func blacklistOf(s *settings.Settings) *[]string    { return &s.Blacklist }
func removedWordsOf(s *settings.Settings) *[]string { return &s.RemovedWords }

// wordListCommand serves /whitelist, /blacklist and /removewords:
// add|remove take comma separated words, clear empties the list and no
// action shows it.
func (b *Bot) wordListCommand(title string, list wordList) commandFunc {
	return func(ctx context.Context, cmd Command) error {
		action, rest := splitAction(cmd.Args)
		words := settings.SplitWords(rest)

		if (action == "add" || action == "remove") && len(words) == 0 {
			return b.reply(ctx, cmd, fmt.Sprintf("Usage: <code>/%s add|remove word1, word2</code>", cmd.Name))
		}

		s, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
			l := list(s)
			switch action {
			case "add":
				if cmd.Name == "removewords" {
					// removed words match case-sensitively
					*l = lo.Uniq(append(*l, words...))
				} else {
					*l = settings.AddWords(*l, words...)
				}
			case "remove":
				if cmd.Name == "removewords" {
					*l = lo.Without(*l, words...)
				} else {
					*l = settings.RemoveWords(*l, words...)
				}
			case "clear":
				*l = nil
			}
			return nil
		})
		if err != nil {
			return err
		}

		return b.reply(ctx, cmd, fmt.Sprintf("<b>%s</b>\n%s", title, formatWords(*list(s))))
	}
}

func (b *Bot) cmdPrefix(ctx context.Context, cmd Command) error {
	return b.setText(ctx, cmd, "Prefix", func(s *settings.Settings) *string { return &s.Prefix })
}

func (b *Bot) cmdSuffix(ctx context.Context, cmd Command) error {
	return b.setText(ctx, cmd, "Suffix", func(s *settings.Settings) *string { return &s.Suffix })
}

func (b *Bot) cmdCaption(ctx context.Context, cmd Command) error {
	return b.setText(ctx, cmd, "Caption template", func(s *settings.Settings) *string { return &s.CaptionTemplate })
}

// setText stores the raw argument, or clears the field for "off".
func (b *Bot) setText(ctx context.Context, cmd Command, title string, field func(*settings.Settings) *string) error {
	if strings.TrimSpace(cmd.Args) == "" {
		return b.reply(ctx, cmd, fmt.Sprintf("Usage: <code>/%s &lt;text | off&gt;</code>", cmd.Name))
	}

	value := cmd.Args
	if isOff(value) {
		value = ""
	}

	if _, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
		*field(s) = value
		return nil
	}); err != nil {
		return err
	}

	if value == "" {
		return b.reply(ctx, cmd, fmt.Sprintf("✅ %s cleared", title))
	}
	return b.reply(ctx, cmd, fmt.Sprintf("✅ %s set to <code>%s</code>", title, escape(value)))
}

func (b *Bot) cmdUsername(ctx context.Context, cmd Command) error {
	return b.setToggle(ctx, cmd, "Remove usernames", func(s *settings.Settings) *bool { return &s.RemoveUsername })
}

func (b *Bot) cmdPremium(ctx context.Context, cmd Command) error {
	title := "Process files above " + progress.FormatBytes(float64(b.opts.Runtime.PremiumLimit))
	return b.setToggle(ctx, cmd, title, func(s *settings.Settings) *bool { return &s.ProcessLarge })
}

func (b *Bot) setToggle(ctx context.Context, cmd Command, title string, field func(*settings.Settings) *bool) error {
	on, ok := parseToggle(cmd.Args)
	if !ok {
		return b.reply(ctx, cmd, fmt.Sprintf("Usage: <code>/%s on|off</code>", cmd.Name))
	}

	if _, err := b.deps.Settings.Update(ctx, func(s *settings.Settings) error {
		*field(s) = on
		return nil
	}); err != nil {
		return err
	}

	return b.reply(ctx, cmd, fmt.Sprintf("✅ %s: %s", title, onOff(on)))
}

func (b *Bot) cmdSetThumb(ctx context.Context, cmd Command) error {
	if cmd.Message == nil || cmd.Message.Media == nil {
		return b.reply(ctx, cmd, "🖼️ Send a photo with <code>/setthumb</code> as its caption.")
	}

	if err := os.MkdirAll(b.opts.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.opts.TempDir, "thumb-upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := b.deps.Chat.SaveMedia(ctx, cmd.Message, path); err != nil {
		if errors.Is(err, telegram.ErrNoMedia) {
			return b.reply(ctx, cmd, "🖼️ Send a photo with <code>/setthumb</code> as its caption.")
		}
		return err
	}
	if err := b.deps.Thumbnails.SaveFile(path); err != nil {
		return err
	}

	return b.reply(ctx, cmd, "✅ Thumbnail saved")
}

func (b *Bot) cmdDelThumb(ctx context.Context, cmd Command) error {
	existed, err := b.deps.Thumbnails.Delete()
	if err != nil {
		return err
	}
	if !existed {
		return b.reply(ctx, cmd, "ℹ️ No thumbnail set")
	}
	return b.reply(ctx, cmd, "🗑️ Thumbnail deleted")
}

// resolveChatID accepts a bot-api id, a bare channel id, @username or a
// t.me/username link.
func (b *Bot) resolveChatID(ctx context.Context, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if id == 0 {
			return 0, fmt.Errorf("invalid chat id %q", arg)
		}
		return transfer.NormalizeChannelID(id), nil
	}

	username := strings.TrimPrefix(arg, "@")
	for _, prefix := range []string{"https://", "http://"} {
		username = strings.TrimPrefix(username, prefix)
	}
	username = strings.TrimPrefix(username, "t.me/")
	username = strings.Trim(username, "/")
	if username == "" || strings.Contains(username, "/") {
		return 0, fmt.Errorf("invalid chat %q", arg)
	}

	return b.deps.Chat.ResolveUsername(ctx, username)
}
