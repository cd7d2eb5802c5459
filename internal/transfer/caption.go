package transfer

import (
	"strings"
)

// DefaultCaptionTemplate is used when no custom caption is configured.
const DefaultCaptionTemplate = "{filename} | {language} {subtitle}"

// telegram rejects media captions longer than this
const maxCaptionLength = 1024

// CaptionFields are the values substituted into a caption template.
type CaptionFields struct {
	FileName    string // {filename}
	FileSize    string // {filesize}
	Language    string // {language}
	Subtitle    string // {subtitle}
	FileCaption string // {filecaption}, caption of the source post
}

// BuildCaption fills the known placeholders of template. Unknown
// placeholders are left as written.
func BuildCaption(template string, f CaptionFields) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultCaptionTemplate
	}

	r := strings.NewReplacer(
		"{filename}", f.FileName,
		"{filesize}", f.FileSize,
		"{language}", f.Language,
		"{subtitle}", f.Subtitle,
		"{filecaption}", f.FileCaption,
	)
	caption := strings.TrimSpace(r.Replace(template))

	if runes := []rune(caption); len(runes) > maxCaptionLength {
		caption = string(runes[:maxCaptionLength])
	}
	return caption
}
