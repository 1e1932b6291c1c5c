package model

import (
	"fmt"
	"unicode/utf8"

	"telegram-field-extractor/internal/domain"
)

const (
	DefaultFieldIndex = 5
	DefaultDelimiter  = ":"

	// MaxDelimiterLen bounds the delimiter in runes so replies quoting it
	// stay within Telegram's caption limit.
	MaxDelimiterLen = 32
)

// Settings are the per-user extraction parameters.
type Settings struct {
	FieldIndex int    `json:"field_index"`
	Delimiter  string `json:"delimiter"`
}

func DefaultSettings() Settings {
	return Settings{FieldIndex: DefaultFieldIndex, Delimiter: DefaultDelimiter}
}

func (s Settings) Validate() error {
	if s.FieldIndex < 0 {
		return fmt.Errorf("%w: field index must be non-negative", domain.ErrInvalidArgument)
	}
	if s.Delimiter == "" {
		return fmt.Errorf("%w: delimiter must not be empty", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(s.Delimiter) > MaxDelimiterLen {
		return fmt.Errorf("%w: delimiter longer than %d characters", domain.ErrInvalidArgument, MaxDelimiterLen)
	}
	return nil
}

// Ordinal is the 1-based position of the selected field.
func (s Settings) Ordinal() int { return s.FieldIndex + 1 }
