package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockedby/tg-relay/internal/transfer"
)

// ErrIncompleteRange is returned when only one end of the range is set.
var ErrIncompleteRange = errors.New("start_link and end_link must be set together")

// LoadSeed reads settings from a YAML file. Unknown keys are rejected so a
// typo in the seed does not silently leave a setting empty.
func LoadSeed(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the saved range. Everything else has a usable zero value.
func (s *Settings) Validate() error {
	if (s.StartLink == "") != (s.EndLink == "") {
		return ErrIncompleteRange
	}
	for _, link := range []string{s.StartLink, s.EndLink} {
		if link == "" {
			continue
		}
		if _, err := transfer.ParseLink(link); err != nil {
			return err
		}
	}
	return nil
}
