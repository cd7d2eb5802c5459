package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// ErrNoMedia is returned when a message has nothing to download.
var ErrNoMedia = errors.New("message has no downloadable media")

type mediaKind int

const (
	kindNone mediaKind = iota
	kindDocument
	kindVideo
	kindAudio
)

// parseMessage converts a single telegram message to our Message type.
// Service and empty messages yield nil.
func parseMessage(msg tg.MessageClass, chatID int64) *Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &Message{
		ID:        m.ID,
		ChannelID: chatID,
		Caption:   m.Message,
		Date:      time.Unix(int64(m.Date), 0),
	}

	switch media := m.Media.(type) {
	case *tg.MessageMediaDocument:
		if doc, ok := media.Document.(*tg.Document); ok {
			attachDocument(out, doc)
		}
	case *tg.MessageMediaPhoto:
		if photo, ok := media.Photo.(*tg.Photo); ok {
			attachPhoto(out, photo)
		}
	}

	return out
}

func attachDocument(out *Message, doc *tg.Document) {
	kind := kindDocument
	var fileName string

	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			fileName = a.FileName
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				kind = kindNone
			} else if kind == kindDocument {
				kind = kindVideo
			}
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				kind = kindNone
			} else if kind == kindDocument {
				kind = kindAudio
			}
		case *tg.DocumentAttributeSticker, *tg.DocumentAttributeAnimated:
			kind = kindNone
		}
	}

	media := &Media{FileName: fileName, FileSize: doc.Size, MimeType: doc.MimeType}
	switch kind {
	case kindNone:
		return
	case kindVideo:
		out.Video = media
	case kindAudio:
		out.Audio = media
	default:
		out.Document = media
	}

	out.location = &tg.InputDocumentFileLocation{
		ID:            doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
	}
}

func attachPhoto(out *Message, photo *tg.Photo) {
	thumb, size := largestPhotoSize(photo.Sizes)
	if thumb == "" {
		return
	}

	out.Photo = &Photo{FileSize: size}
	out.location = &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumb,
	}
}

// largestPhotoSize picks the biggest downloadable size of a photo.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (thumbType string, size int64) {
	for _, s := range sizes {
		var typ string
		var n int64

		switch ps := s.(type) {
		case *tg.PhotoSize:
			typ, n = ps.Type, int64(ps.Size)
		case *tg.PhotoSizeProgressive:
			if len(ps.Sizes) == 0 {
				continue
			}
			typ, n = ps.Type, int64(ps.Sizes[len(ps.Sizes)-1])
		case *tg.PhotoCachedSize:
			typ, n = ps.Type, int64(len(ps.Bytes))
		default:
			continue
		}

		if thumbType == "" || n > size {
			thumbType, size = typ, n
		}
	}
	return thumbType, size
}

// DownloadMedia writes the attachment of msg to path. An expired file
// reference is refreshed by fetching the message again.
func (c *Client) DownloadMedia(ctx context.Context, msg *Message, path string, progress ProgressFunc) (string, error) {
	if msg == nil || msg.location == nil {
		return "", ErrNoMedia
	}

	total := msg.size()
	err := c.download(ctx, msg.location, path, total, progress)
	if err != nil && tgerr.Is(err, "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID") && msg.ChannelID != 0 {
		c.log.Debug().Int("message_id", msg.ID).Msg("file reference expired, refetching")

		fresh, ferr := c.FetchMessage(ctx, msg.ChannelID, msg.ID)
		if ferr == nil && fresh != nil && fresh.location != nil {
			err = c.download(ctx, fresh.location, path, total, progress)
		}
	}
	if err != nil {
		return path, fmt.Errorf("download message %d: %w", msg.ID, err)
	}

	return path, nil
}

// SaveMedia downloads the attachment of a raw message, e.g. a photo sent
// to the bot.
func (c *Client) SaveMedia(ctx context.Context, raw *tg.Message, path string) error {
	msg := parseMessage(raw, 0)
	if msg == nil || msg.location == nil {
		return ErrNoMedia
	}
	return c.download(ctx, msg.location, path, msg.size(), nil)
}

func (c *Client) download(ctx context.Context, loc tg.InputFileLocationClass, path string, total int64, progress ProgressFunc) (err error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	api, err := c.API()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := &progressWriter{w: f, total: total, fn: progress}
	if _, err := c.downloader.Download(api, loc).Stream(ctx, w); err != nil {
		c.rateLimiter.Observe(err)
		return err
	}
	return nil
}

// UploadDocument uploads a local file and sends it to chatID as a
// document with caption and optional thumbnail.
func (c *Client) UploadDocument(ctx context.Context, chatID int64, up Upload, progress ProgressFunc) error {
	peer, err := c.inputPeer(ctx, chatID)
	if err != nil {
		return err
	}

	api, err := c.API()
	if err != nil {
		return err
	}

	mime := "application/octet-stream"
	if m, err := mimetype.DetectFile(up.Path); err == nil {
		mime = m.String()
	}

	file, err := uploader.NewUploader(api).
		WithPartSize(uploader.MaximumPartSize).
		WithProgress(uploadProgress(progress)).
		FromPath(ctx, up.Path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", up.FileName, err)
	}

	media := &tg.InputMediaUploadedDocument{
		File:      file,
		MimeType:  mime,
		ForceFile: true,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: up.FileName},
		},
	}

	if up.Thumbnail != "" {
		thumb, err := uploader.NewUploader(api).FromPath(ctx, up.Thumbnail)
		if err != nil {
			c.log.Warn().Err(err).Str("thumbnail", up.Thumbnail).Msg("thumbnail upload failed, sending without")
		} else {
			media.Thumb = thumb
		}
	}

	randomID := newRandomID()
	return c.invoke(ctx, "send document", func(api *tg.Client) error {
		_, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer:     peer,
			Media:    media,
			Message:  up.Caption,
			RandomID: randomID,
		})
		return err
	})
}

// size of the attachment as reported by telegram
func (m *Message) size() int64 {
	switch {
	case m.Document != nil:
		return m.Document.FileSize
	case m.Video != nil:
		return m.Video.FileSize
	case m.Audio != nil:
		return m.Audio.FileSize
	case m.Photo != nil:
		return m.Photo.FileSize
	}
	return 0
}

// progressWriter reports the bytes written so far after every write.
type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.fn != nil {
		p.fn(p.written, p.total)
	}
	return n, err
}

// uploadProgress adapts a ProgressFunc to the uploader.
type uploadProgress ProgressFunc

func (p uploadProgress) Chunk(_ context.Context, state uploader.ProgressState) error {
	if p != nil {
		p(state.Uploaded, state.Total)
	}
	return nil
}

func newRandomID() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}
