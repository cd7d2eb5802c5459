package progress

import (
	"fmt"
	"html"
	"strings"

	"github.com/samber/lo"
)

const (
	// ReadyText is shown when no transfer is running
	ReadyText = "✅ Ready to process"

	// FetchingText is shown while the queue is being built
	FetchingText = "🔍 <b>FETCHING</b>\n\nCollecting messages from the source channel..."

	previewSize   = 5
	maxNameLength = 32
	separator     = "<b>━━━━━━━━━━━━━━━━━━</b>"
)

// Render turns a snapshot into the HTML status message shown in the
// control chat. It has no side effects; the refresh loop compares two
// renders to decide whether the message needs an edit.
func Render(s State) string {
	switch s.Status {
	case StatusIdle:
		return ReadyText
	case StatusFetching:
		return FetchingText
	}

	phase, phaseName, speed := "📤 UPLOADING", "Uploading", s.UploadSpeed
	if s.Status == StatusDownloading {
		phase, phaseName, speed = "📥 DOWNLOADING", "Downloading", s.DownloadSpeed
	}

	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b> %d/%d\n\n", phase, s.CurrentIndex, s.ToProcess)
	fmt.Fprintf(&b, "<b>📄 %s</b>\n\n", html.EscapeString(s.FileName))
	fmt.Fprintf(&b, "%s <b>%.0f%%</b>\n", ProgressBar(s.CurrentSize, s.TotalSize, BarWidth), Percent(s.CurrentSize, s.TotalSize))
	fmt.Fprintf(&b, "<b>💾</b> %s / %s\n", FormatBytes(float64(s.CurrentSize)), FormatBytes(float64(s.TotalSize)))
	fmt.Fprintf(&b, "<b>🚀</b> %s/s\n", FormatBytes(speed))

	if len(s.Queue) > 0 {
		b.WriteString("\n" + separator + "\n")
		fmt.Fprintf(&b, "<b>📋 QUEUE (%d+):</b>\n", len(s.Queue))

		for i, entry := range lo.Slice(s.Queue, 0, previewSize) {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, queueLine(entry))
		}
		if extra := len(s.Queue) - previewSize; extra > 0 {
			fmt.Fprintf(&b, "  <i>+%d more...</i>", extra)
		}
	}

	b.WriteString("\n" + separator + "\n")
	b.WriteString("<b>📈 PROGRESS:</b>\n")
	fmt.Fprintf(&b, "  ✅ Processed: %d\n", s.Processed)
	fmt.Fprintf(&b, "  ⏳ Currently: %s\n", phaseName)
	fmt.Fprintf(&b, "  📌 Remaining: %d\n", s.Remaining())

	b.WriteString("\n<b>📊 FILE COUNTS:</b>\n")
	fmt.Fprintf(&b, "  📥 Total Found: %d\n", s.Total)
	fmt.Fprintf(&b, "  ✓ To Process: %d\n", s.ToProcess)
	fmt.Fprintf(&b, "  %s: %d\n", premiumLabel(s.PremiumLimit), s.PremiumCount)
	fmt.Fprintf(&b, "  ✗ Skipped: %d", s.Skipped)

	return b.String()
}

func queueLine(e QueueEntry) string {
	name := html.EscapeString(TruncateName(e.Name, maxNameLength))
	switch {
	case e.SkipReason != "":
		return fmt.Sprintf("✗ %s (Skip - %s)", name, html.EscapeString(e.SkipReason))
	case e.Premium:
		return fmt.Sprintf("⭐ %s (Premium)", name)
	}
	return "✓ " + name
}

func premiumLabel(limit int64) string {
	if limit <= 0 {
		return "⭐ Premium"
	}
	return fmt.Sprintf("⭐ Premium (>%s)", formatLimit(limit))
}

// formatLimit prints whole gigabytes without decimals, e.g. 2GB.
func formatLimit(limit int64) string {
	const gb = 1 << 30
	if limit%gb == 0 {
		return fmt.Sprintf("%dGB", limit/gb)
	}
	return FormatBytes(float64(limit))
}

// TruncateName shortens names longer than limit runes. When the name has
// an extension the base is cut to limit-4 runes and the extension is kept.
func TruncateName(name string, limit int) string {
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}

	if i := strings.LastIndex(name, "."); i >= 0 {
		base := []rune(name[:i])
		if keep := limit - 4; len(base) > keep {
			base = base[:max(keep, 0)]
		}
		return string(base) + "..." + name[i+1:]
	}

	return string(runes[:limit]) + ".."
}
