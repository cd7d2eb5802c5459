package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// Media describes a file attached to a message (document, video or audio)
type Media struct {
	FileName string // file name attribute, may be empty
	FileSize int64  // size in bytes
	MimeType string // mime type reported by telegram
}

// Photo describes a photo attachment
type Photo struct {
	FileSize int64 // size of the largest available photo size
}

// Message represents a parsed channel post carrying at most one attachment
type Message struct {
	ID        int       // message id (unique within channel)
	ChannelID int64     // bot-api style channel id (-100...)
	Caption   string    // message text or media caption
	Date      time.Time // message creation timestamp
	Document  *Media    // generic document attachment
	Video     *Media    // video document attachment
	Audio     *Media    // audio document attachment
	Photo     *Photo    // photo attachment

	// location is where the attachment bytes can be downloaded from
	location tg.InputFileLocationClass
}

// Upload describes a local file sent as a document to a destination chat
type Upload struct {
	Path      string // local file to upload
	FileName  string // file name shown in telegram
	Caption   string // plain text caption
	Thumbnail string // optional local jpeg thumbnail
}

// ProgressFunc receives (bytes transferred, total bytes) events during
// a download or upload. total may be zero when unknown.
type ProgressFunc func(current, total int64)
