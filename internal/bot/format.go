package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/settings"
	"github.com/blockedby/tg-relay/internal/transfer"
)

const startText = "👋 <b>Content Relay Bot</b>\n\n" +
	"I copy files from a source channel to your destination channels, " +
	"renaming and filtering them on the way.\n\nSend /help for the command list."

const helpText = `📖 <b>Commands</b>

<b>Transfer</b>
/range &lt;start&gt; &lt;end&gt; - save the post range
/process [start end] - relay the saved or given range
/status - show the live status
/cancel - stop the running transfer

<b>Channels</b>
/source &lt;id | @username | off&gt;
/dest add|remove &lt;ids&gt; - /dest clear

<b>Filters</b>
/whitelist add|remove word1, word2
/blacklist add|remove word1, word2
/removewords add|remove word1, word2

<b>Naming</b>
/prefix &lt;text | off&gt;
/suffix &lt;text | off&gt;
/username on|off - strip @tags from names
/caption &lt;template | off&gt;
  {filename} {filesize} {language} {subtitle} {filecaption}

<b>Other</b>
/premium on|off - relay files above the size limit
/setthumb - send as the caption of a photo
/delthumb - remove the thumbnail
/settings - show everything`

func renderSettings(s *settings.Settings, hasThumb bool, premiumLimit int64) string {
	var b strings.Builder

	b.WriteString("⚙️ <b>Settings</b>\n\n")

	source := "not set"
	if s.SourceChannelID != 0 {
		source = fmt.Sprintf("<code>%d</code>", s.SourceChannelID)
	}
	fmt.Fprintf(&b, "📥 Source: %s\n", source)
	fmt.Fprintf(&b, "📤 Destinations: %s\n\n", inlineIDs(s.DestinationIDs))

	fmt.Fprintf(&b, "✅ Whitelist: %s\n", formatWords(s.Whitelist))
	fmt.Fprintf(&b, "🚫 Blacklist: %s\n", formatWords(s.Blacklist))
	fmt.Fprintf(&b, "✂️ Removed words: %s\n\n", formatWords(s.RemovedWords))

	fmt.Fprintf(&b, "🔤 Prefix: %s\n", formatText(s.Prefix))
	fmt.Fprintf(&b, "🔤 Suffix: %s\n", formatText(s.Suffix))
	fmt.Fprintf(&b, "👤 Remove usernames: %s\n", onOff(s.RemoveUsername))

	caption := s.CaptionTemplate
	if caption == "" {
		caption = transfer.DefaultCaptionTemplate
	}
	fmt.Fprintf(&b, "📝 Caption: <code>%s</code>\n", escape(caption))

	limit := "the size limit"
	if premiumLimit > 0 {
		limit = progress.FormatBytes(float64(premiumLimit))
	}
	fmt.Fprintf(&b, "💎 Files above %s: %s\n", limit, onOff(s.ProcessLarge))
	fmt.Fprintf(&b, "🖼️ Thumbnail: %s\n\n", lo.Ternary(hasThumb, "set", "not set"))

	if s.StartLink != "" && s.EndLink != "" {
		fmt.Fprintf(&b, "🔗 Range:\n%s\n%s", escape(s.StartLink), escape(s.EndLink))
	} else {
		b.WriteString("🔗 Range: not set")
	}

	return b.String()
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatWords(words []string) string {
	if len(words) == 0 {
		return "none"
	}
	return strings.Join(lo.Map(words, func(w string, _ int) string {
		return "<code>" + escape(w) + "</code>"
	}), ", ")
}

func formatText(s string) string {
	if s == "" {
		return "none"
	}
	return "<code>" + escape(s) + "</code>"
}

func inlineIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(lo.Map(ids, func(id int64, _ int) string {
		return fmt.Sprintf("<code>%d</code>", id)
	}), ", ")
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(lo.Map(ids, func(id int64, i int) string {
		return fmt.Sprintf("%d. <code>%d</code>", i+1, id)
	}), "\n")
}

func onOff(on bool) string {
	return lo.Ternary(on, "on", "off")
}

func isOff(arg string) bool {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "off", "clear", "none", "reset":
		return true
	}
	return false
}

func parseToggle(arg string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "yes", "true", "1", "enable":
		return true, true
	case "off", "no", "false", "0", "disable":
		return false, true
	}
	return false, false
}

// splitAction splits "add a, b" into ("add", "a, b"). Unknown first words
// are treated as the show action with no arguments.
func splitAction(args string) (action, rest string) {
	args = strings.TrimSpace(args)
	first, rest, _ := strings.Cut(args, " ")
	switch strings.ToLower(first) {
	case "add", "remove", "clear":
		return strings.ToLower(first), strings.TrimSpace(rest)
	case "rm", "del", "delete":
		return "remove", strings.TrimSpace(rest)
	}
	return "show", ""
}

func isListSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// parseCommand splits "/process@RelayBot a b" into ("process", "a b").
// ok is false when text is not a command.
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		args = head[i+1:] + " " + args
		head = head[:i]
	}
	name, _, _ = strings.Cut(head, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}
