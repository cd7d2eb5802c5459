// Package settings stores the owner-editable relay settings.
package settings

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/blockedby/tg-relay/internal/naming"
	"github.com/blockedby/tg-relay/internal/transfer"
)

// Settings is the single row of runtime configuration edited through bot commands.
type Settings struct {
	ID uint `gorm:"primaryKey" yaml:"-" json:"-"`

	SourceChannelID int64   `yaml:"source_channel_id" json:"source_channel_id"`
	DestinationIDs  []int64 `gorm:"serializer:json" yaml:"destinations" json:"destinations"`

	Whitelist    []string `gorm:"serializer:json" yaml:"whitelist" json:"whitelist"`
	Blacklist    []string `gorm:"serializer:json" yaml:"blacklist" json:"blacklist"`
	RemovedWords []string `gorm:"serializer:json" yaml:"removed_words" json:"removed_words"`

	Prefix          string `yaml:"prefix" json:"prefix"`
	Suffix          string `yaml:"suffix" json:"suffix"`
	RemoveUsername  bool   `yaml:"remove_username" json:"remove_username"`
	CaptionTemplate string `yaml:"caption_template" json:"caption_template"`
	ProcessLarge    bool   `yaml:"process_large" json:"process_large"`

	StartLink string `yaml:"start_link" json:"start_link"`
	EndLink   string `yaml:"end_link" json:"end_link"`

	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

// TableName pins the table name.
func (Settings) TableName() string {
	return "relay_settings"
}

// Filter returns the word filter for a run.
func (s Settings) Filter() naming.Filter {
	return naming.Filter{
		Whitelist: lo.Compact(s.Whitelist),
		Blacklist: lo.Compact(s.Blacklist),
	}
}

// Rules returns the rename rules for a run.
func (s Settings) Rules() naming.Rules {
	return naming.Rules{
		RemoveUsername: s.RemoveUsername,
		RemovedWords:   lo.Compact(s.RemovedWords),
		Prefix:         s.Prefix,
		Suffix:         s.Suffix,
	}
}

// Runtime carries the process-level knobs that are not stored with the settings.
type Runtime struct {
	DownloadDir     string
	PremiumLimit    int64
	RefreshInterval time.Duration
}

// Options snapshots s into the options of a single run.
func (s Settings) Options(rt Runtime) transfer.Options {
	template := s.CaptionTemplate
	if template == "" {
		template = transfer.DefaultCaptionTemplate
	}

	return transfer.Options{
		Filter:          s.Filter(),
		Rules:           s.Rules(),
		Destinations:    lo.Uniq(s.DestinationIDs),
		CaptionTemplate: template,
		AllowPremium:    s.ProcessLarge,
		PremiumLimit:    rt.PremiumLimit,
		DownloadDir:     rt.DownloadDir,
		RefreshInterval: rt.RefreshInterval,
	}
}

// AddWords appends words to list, skipping blanks and case-insensitive duplicates.
func AddWords(list []string, words ...string) []string {
	out := append([]string(nil), list...)
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || containsFold(out, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// RemoveWords drops every case-insensitive match of words from list.
func RemoveWords(list []string, words ...string) []string {
	return lo.Reject(list, func(item string, _ int) bool {
		return lo.ContainsBy(words, func(w string) bool {
			return strings.EqualFold(strings.TrimSpace(w), item)
		})
	})
}

// SplitWords splits a comma separated argument into trimmed, non-empty words.
func SplitWords(arg string) []string {
	parts := lo.Map(strings.Split(arg, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Compact(parts)
}

func containsFold(list []string, w string) bool {
	return lo.ContainsBy(list, func(item string) bool {
		return strings.EqualFold(item, w)
	})
}
