// Package naming decides which channel files are relayed and how they are renamed.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/telegram"
)

// reasons returned by ShouldProcess
const (
	ReasonOK          = "OK"
	ReasonNoFileName  = "No file name found"
	ReasonNoWhitelist = "No whitelist word found"
)

var (
	// @channel style tags, unicode letters included
	usernamePattern = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
	// www.1tamilmv.<anything> promo stamps, the tld part changes often
	promoPattern = regexp.MustCompile(`www\.1tamilmv\.\S+\s*`)
)

// ExtractFileName returns the name of the first attachment found on msg.
// Bare photos get a synthesized photo_<id>.jpg name, caption-only
// messages fall back to their caption.
func ExtractFileName(msg *telegram.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.Document != nil:
		return msg.Document.FileName
	case msg.Video != nil:
		return msg.Video.FileName
	case msg.Audio != nil:
		return msg.Audio.FileName
	case msg.Photo != nil:
		return fmt.Sprintf("photo_%d.jpg", msg.ID)
	case msg.Caption != "":
		return msg.Caption
	}
	return ""
}

// FileSize returns the size of the first attachment found on msg.
func FileSize(msg *telegram.Message) int64 {
	switch {
	case msg == nil:
		return 0
	case msg.Document != nil:
		return msg.Document.FileSize
	case msg.Video != nil:
		return msg.Video.FileSize
	case msg.Audio != nil:
		return msg.Audio.FileSize
	case msg.Photo != nil:
		return msg.Photo.FileSize
	}
	return 0
}

// HasDownloadableMedia reports whether msg carries a file that can be relayed.
func HasDownloadableMedia(msg *telegram.Message) bool {
	if msg == nil {
		return false
	}
	return msg.Document != nil || msg.Video != nil || msg.Audio != nil || msg.Photo != nil
}

// Filter holds the word lists used to accept or reject files.
type Filter struct {
	Blacklist []string
	Whitelist []string
}

// ShouldProcess reports whether fileName passes the filter and why.
// Matching is a case-insensitive substring test; the blacklist always wins.
func (f Filter) ShouldProcess(fileName string) (bool, string) {
	if fileName == "" {
		return false, ReasonNoFileName
	}

	lower := strings.ToLower(fileName)
	contains := func(word string) bool {
		word = strings.ToLower(strings.TrimSpace(word))
		return word != "" && strings.Contains(lower, word)
	}

	if word, found := lo.Find(f.Blacklist, contains); found {
		return false, "Blacklisted word: " + word
	}

	whitelist := lo.Filter(f.Whitelist, func(w string, _ int) bool {
		return strings.TrimSpace(w) != ""
	})
	if len(whitelist) > 0 && !lo.ContainsBy(whitelist, contains) {
		return false, ReasonNoWhitelist
	}

	return true, ReasonOK
}

// Rules configures Rename.
type Rules struct {
	RemoveUsername bool     // strip @username tags
	RemovedWords   []string // exact, case-sensitive words to drop
	Prefix         string
	Suffix         string
}

// Rename cleans up a file name. The steps run in a fixed order:
// underscores become spaces, @tags and promo urls are stripped, removed
// words are dropped, whitespace is collapsed, prefix/suffix are added and
// the extension is put back. If nothing is left of the base name the
// original is returned untouched.
func (r Rules) Rename(original string) string {
	if original == "" {
		return original
	}

	base, ext := SplitExt(original)

	base = strings.ReplaceAll(base, "_", " ")
	if r.RemoveUsername {
		base = usernamePattern.ReplaceAllString(base, "")
	}
	base = promoPattern.ReplaceAllString(base, "")
	for _, word := range r.RemovedWords {
		if word == "" {
			continue
		}
		base = strings.ReplaceAll(base, word, "")
	}
	base = strings.Join(strings.Fields(base), " ")

	if base == "" {
		return original
	}

	name := r.Prefix + base + r.Suffix
	if ext != "" {
		name += "." + ext
	}
	return name
}

// SplitExt splits name on its last dot. A name without a dot has no extension.
func SplitExt(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
