// Package thumbnail keeps the custom thumbnail attached to uploaded documents.
package thumbnail

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // decoders
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/blockedby/tg-relay/internal/logger"
)

const (
	// FileName is the name of the stored thumbnail inside the store directory.
	FileName = "default_thumb.jpg"
	// MaxSide bounds both dimensions of the stored thumbnail.
	MaxSide = 320
	// Quality is the JPEG quality used when encoding.
	Quality = 85
)

// Store manages a single thumbnail file on disk.
type Store struct {
	dir string
	log *logger.Logger
	mu  sync.RWMutex
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{dir: dir, log: log.WithComponent("thumbnail")}
}

// Path returns where the thumbnail is stored, whether or not it exists.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Exists reports whether a thumbnail is set.
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.Path())
	return err == nil && info.Mode().IsRegular()
}

// Current returns the thumbnail path, or "" when none is set.
func (s *Store) Current() string {
	if !s.Exists() {
		return ""
	}
	return s.Path()
}

// Save decodes an image from r, fits it into MaxSide x MaxSide and stores
// it as an RGB JPEG, replacing any previous thumbnail.
func (s *Store) Save(r io.Reader) error {
	src, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	dst := fit(src, MaxSide)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "thumb-*.jpg")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, dst, &jpeg.Options{Quality: Quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}

	b := dst.Bounds()
	s.log.Info().
		Str("source_format", format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("thumbnail saved")
	return nil
}

// SaveFile is Save for an image on disk.
func (s *Store) SaveFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return s.Save(f)
}

// Delete removes the thumbnail. It reports whether one existed.
func (s *Store) Delete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete thumbnail: %w", err)
	}
	s.log.Info().Msg("thumbnail deleted")
	return true, nil
}

// fit scales src down, keeping its aspect ratio, so neither side exceeds side.
// Smaller images keep their size. Transparency is flattened onto white.
func fit(src image.Image, side int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > side || h > side {
		if w >= h {
			h = max(1, h*side/w)
			w = side
		} else {
			w = max(1, w*side/h)
			h = side
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
