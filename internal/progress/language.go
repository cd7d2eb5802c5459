package progress

import (
	"regexp"
	"strings"
)

// UnknownLanguage is returned when no language token is found.
const UnknownLanguage = "Unknown"

type languagePattern struct {
	re       *regexp.Regexp
	language string
	subtitle string
}

// checked in order, first match wins. "esub" belongs to english, so a
// tamil file with english subs reports English/Esub.
var languagePatterns = []languagePattern{
	{regexp.MustCompile(`\[?english\]?|\[?eng\]?|esub`), "English", "Esub"},
	{regexp.MustCompile(`\[?hindi\]?|\[?hin\]?|hsub`), "Hindi", "Hsub"},
	{regexp.MustCompile(`\[?telugu\]?|\[?tel\]?|tesub`), "Telugu", "Tesub"},
	{regexp.MustCompile(`\[?kannada\]?|\[?kan\]?|ksub`), "Kannada", "Ksub"},
	{regexp.MustCompile(`\[?tamil\]?|\[?tam\]?|tsub`), "Tamil", "Tsub"},
	{regexp.MustCompile(`\[?malayalam\]?|\[?mal\]?|msub`), "Malayalam", "Msub"},
	{regexp.MustCompile(`\[?punjabi\]?|\[?pan\]?|psub`), "Punjabi", "Psub"},
}

var subtitlePattern = regexp.MustCompile(`esub|hsub|tesub|ksub|tsub|msub|psub|sub`)

// LanguageAndSubtitle guesses the audio language of a release from its
// file name. The subtitle tag is only set when a sub marker is present too.
func LanguageAndSubtitle(fileName string) (language, subtitle string) {
	if fileName == "" {
		return UnknownLanguage, ""
	}

	lower := strings.ToLower(fileName)
	for _, p := range languagePatterns {
		if !p.re.MatchString(lower) {
			continue
		}
		if subtitlePattern.MatchString(lower) {
			return p.language, p.subtitle
		}
		return p.language, ""
	}

	return UnknownLanguage, ""
}
