// Package progress renders the live status of a transfer and tracks throughput.
package progress

import (
	"fmt"
)

// Status is the phase of the running transfer.
type Status int

// Status values. The zero value is idle.
const (
	StatusIdle Status = iota
	StatusFetching
	StatusDownloading
	StatusUploading
)

var statusNames = [...]string{
	StatusIdle:        "idle",
	StatusFetching:    "fetching",
	StatusDownloading: "downloading",
	StatusUploading:   "uploading",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler so the status shows up as
// a word in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// QueueEntry is one line of the queue preview.
type QueueEntry struct {
	Name       string `json:"name"`
	SkipReason string `json:"skip_reason,omitempty"`
	Premium    bool   `json:"premium"`
}

// State is a read-only snapshot of a transfer, taken by the refresh loop
// and handed to Render.
type State struct {
	Status        Status       `json:"status"`
	FileName      string       `json:"file_name"`
	CurrentSize   int64        `json:"current_size"`
	TotalSize     int64        `json:"total_size"`
	CurrentIndex  int          `json:"current_index"` // 1-based, eligible items only
	Processed     int          `json:"processed"`
	Total         int          `json:"total"`
	DownloadSpeed float64      `json:"download_speed"`
	UploadSpeed   float64      `json:"upload_speed"`
	Queue         []QueueEntry `json:"queue"` // remaining items after the current one
	Skipped       int          `json:"skipped"`
	PremiumCount  int          `json:"premium_count"`
	ToProcess     int          `json:"to_process"`
	Cancelled     bool         `json:"cancelled"`

	// PremiumLimit is the large-file threshold, used for the counts label
	PremiumLimit int64 `json:"premium_limit"`
}

// Remaining returns the number of items neither processed nor skipped.
func (s State) Remaining() int {
	return s.Total - s.Processed - s.Skipped
}
