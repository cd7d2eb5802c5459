package progress

import (
	"fmt"
	"strings"
)

const (
	barFilled = "█"
	barEmpty  = "░"

	// BarWidth is the number of segments in the status progress bar
	BarWidth = 12
)

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes prints n with a binary unit and one decimal, e.g. 1536 -> 1.5KB.
func FormatBytes(n float64) string {
	for _, unit := range byteUnits {
		if n < 1024 {
			return fmt.Sprintf("%.1f%s", n, unit)
		}
		n /= 1024
	}
	return fmt.Sprintf("%.1fTB", n)
}

// ProgressBar draws a width-wide bar filled in proportion to current/total.
// An unknown total draws a full bar.
func ProgressBar(current, total int64, width int) string {
	if total <= 0 {
		return strings.Repeat(barFilled, width)
	}
	filled := int(float64(width) * float64(current) / float64(total))
	filled = max(0, min(filled, width))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// Percent returns current/total in percent, 0 when total is unknown.
func Percent(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}
