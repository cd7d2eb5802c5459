package telegram

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	date := int(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Unix())
	chatID := ChannelPeerID(1234567890)

	document := func(attrs ...tg.DocumentAttributeClass) *tg.Message {
		return &tg.Message{
			ID:      7,
			Date:    date,
			Message: "caption",
			Media: &tg.MessageMediaDocument{Document: &tg.Document{
				ID:         100,
				AccessHash: 200,
				Size:       5 << 30,
				MimeType:   "video/x-matroska",
				Attributes: attrs,
			}},
		}
	}

	t.Run("file document", func(t *testing.T) {
		m := parseMessage(document(&tg.DocumentAttributeFilename{FileName: "Movie.mkv"}), chatID)
		require.NotNil(t, m)
		require.NotNil(t, m.Document)
		assert.Equal(t, "Movie.mkv", m.Document.FileName)
		assert.Equal(t, int64(5<<30), m.Document.FileSize)
		assert.Equal(t, "caption", m.Caption)
		assert.Equal(t, chatID, m.ChannelID)
		assert.Equal(t, int64(date), m.Date.Unix())

		loc, ok := m.location.(*tg.InputDocumentFileLocation)
		require.True(t, ok)
		assert.Equal(t, int64(100), loc.ID)
		assert.Equal(t, int64(200), loc.AccessHash)
	})

	t.Run("video", func(t *testing.T) {
		m := parseMessage(document(
			&tg.DocumentAttributeVideo{Duration: 60},
			&tg.DocumentAttributeFilename{FileName: "clip.mp4"},
		), chatID)
		require.NotNil(t, m.Video)
		assert.Nil(t, m.Document)
		assert.Equal(t, "clip.mp4", m.Video.FileName)
	})

	t.Run("audio", func(t *testing.T) {
		m := parseMessage(document(&tg.DocumentAttributeAudio{Duration: 180}), chatID)
		require.NotNil(t, m.Audio)
		assert.Empty(t, m.Audio.FileName)
	})

	t.Run("voice and stickers are not relayed", func(t *testing.T) {
		for _, attr := range []tg.DocumentAttributeClass{
			&tg.DocumentAttributeAudio{Voice: true},
			&tg.DocumentAttributeVideo{RoundMessage: true},
			&tg.DocumentAttributeSticker{Alt: "x", Stickerset: &tg.InputStickerSetEmpty{}},
			&tg.DocumentAttributeAnimated{},
		} {
			m := parseMessage(document(attr), chatID)
			require.NotNil(t, m)
			assert.Nil(t, m.Document)
			assert.Nil(t, m.Video)
			assert.Nil(t, m.Audio)
			assert.Nil(t, m.location)
		}
	})

	t.Run("photo", func(t *testing.T) {
		m := parseMessage(&tg.Message{
			ID: 8,
			Media: &tg.MessageMediaPhoto{Photo: &tg.Photo{
				ID: 1,
				Sizes: []tg.PhotoSizeClass{
					&tg.PhotoStrippedSize{Type: "i", Bytes: []byte{1}},
					&tg.PhotoSize{Type: "m", W: 320, H: 320, Size: 1000},
					&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 1280, Sizes: []int{500, 9000, 25000}},
				},
			}},
		}, chatID)
		require.NotNil(t, m.Photo)
		assert.Equal(t, int64(25000), m.Photo.FileSize)

		loc, ok := m.location.(*tg.InputPhotoFileLocation)
		require.True(t, ok)
		assert.Equal(t, "y", loc.ThumbSize)
	})

	t.Run("text only", func(t *testing.T) {
		m := parseMessage(&tg.Message{ID: 9, Message: "hello"}, chatID)
		require.NotNil(t, m)
		assert.Nil(t, m.location)
	})

	t.Run("service and empty messages", func(t *testing.T) {
		assert.Nil(t, parseMessage(&tg.MessageService{ID: 1}, chatID))
		assert.Nil(t, parseMessage(&tg.MessageEmpty{ID: 2}, chatID))
	})
}

func TestChannelIDs(t *testing.T) {
	assert.Equal(t, int64(-1001234567890), ChannelPeerID(1234567890))

	bare, ok := BareChannelID(-1001234567890)
	assert.True(t, ok)
	assert.Equal(t, int64(1234567890), bare)

	_, ok = BareChannelID(-123456789) // basic group
	assert.False(t, ok)
	_, ok = BareChannelID(42) // user
	assert.False(t, ok)
}

func TestPeerID(t *testing.T) {
	tests := []struct {
		name   string
		peer   tg.InputPeerClass
		want   int64
		wantOK bool
	}{
		{"user", &tg.InputPeerUser{UserID: 42}, 42, true},
		{"basic group", &tg.InputPeerChat{ChatID: 77}, -77, true},
		{"channel", &tg.InputPeerChannel{ChannelID: 1234567890}, -1001234567890, true},
		{"self", &tg.InputPeerSelf{}, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PeerID(tt.peer)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_InputPeer_Cached(t *testing.T) {
	c := newClient(func() (*tg.Client, error) { return nil, ErrNotReady })

	c.rememberChats([]tg.ChatClass{
		&tg.Channel{ID: 55, AccessHash: 99},
		&tg.Chat{ID: 77},
	})

	peer, err := c.inputPeer(context.Background(), ChannelPeerID(55))
	require.NoError(t, err)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 55, AccessHash: 99}, peer)

	peer, err = c.inputPeer(context.Background(), -77)
	require.NoError(t, err)
	assert.Equal(t, &tg.InputPeerChat{ChatID: 77}, peer)

	peer, err = c.inputPeer(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &tg.InputPeerUser{UserID: 42}, peer)

	// unknown channels need the api
	_, err = c.inputPeer(context.Background(), ChannelPeerID(56))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSentMessageID(t *testing.T) {
	assert.Equal(t, 11, sentMessageID(&tg.UpdateShortSentMessage{ID: 11}, 1))

	updates := &tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateNewMessage{Message: &tg.Message{ID: 5}},
		&tg.UpdateMessageID{ID: 12, RandomID: 777},
	}}
	assert.Equal(t, 12, sentMessageID(updates, 777))
	assert.Equal(t, 5, sentMessageID(updates, 1), "falls back to the new message")

	assert.Equal(t, 0, sentMessageID(&tg.UpdatesTooLong{}, 1))
}

func TestFormatHTML(t *testing.T) {
	text, entities := formatHTML("<b>📥 DOWNLOADING</b> 1/2")
	assert.Equal(t, "📥 DOWNLOADING 1/2", text)
	require.Len(t, entities, 1)
	_, ok := entities[0].(*tg.MessageEntityBold)
	assert.True(t, ok)
}

func TestCancelMarkup(t *testing.T) {
	markup, ok := CancelMarkup().(*tg.ReplyInlineMarkup)
	require.True(t, ok)
	require.Len(t, markup.Rows, 1)

	btn, ok := markup.Rows[0].Buttons[0].(*tg.KeyboardButtonCallback)
	require.True(t, ok)
	assert.Equal(t, "❌ Cancel All", btn.Text)
	assert.Equal(t, []byte(CancelAllData), btn.Data)
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	var calls [][2]int64

	w := &progressWriter{w: &buf, total: 10, fn: func(cur, total int64) {
		calls = append(calls, [2]int64{cur, total})
	}}

	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, "helloworld", buf.String())
	assert.Equal(t, [][2]int64{{5, 10}, {10, 10}}, calls)
}

func TestDownloadMedia_NoMedia(t *testing.T) {
	c := newClient(func() (*tg.Client, error) { return nil, ErrNotReady })

	_, err := c.DownloadMedia(context.Background(), &Message{ID: 1}, "x", nil)
	assert.ErrorIs(t, err, ErrNoMedia)
}
