package settings

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when a settings value is outside its enumeration.
var ErrInvalid = errors.New("invalid settings value")

// Tone controls the register of assistant replies.
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneNormal       Tone = "normal"
	ToneProfessional Tone = "professional"
)

// Language selects the reply language.
type Language string

const (
	LanguageEnglish   Language = "english"
	LanguageRomanUrdu Language = "roman_urdu"
)

// Theme is a presentation preference persisted with the other settings.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// UserSettings is the per-user preference record.
type UserSettings struct {
	Tone     Tone     `json:"tone"`
	Language Language `json:"language"`
	Theme    Theme    `json:"theme"`
}

// Default returns the settings applied to users who never saved any.
func Default() UserSettings {
	return UserSettings{Tone: ToneNormal, Language: LanguageEnglish, Theme: ThemeLight}
}

// WithDefaults fills empty fields from Default.
func (s UserSettings) WithDefaults() UserSettings {
	def := Default()
	if s.Tone == "" {
		s.Tone = def.Tone
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	return s
}

// Validate checks every field against its allowed values.
func (s UserSettings) Validate() error {
	switch s.Tone {
	case ToneCasual, ToneNormal, ToneProfessional:
	default:
		return fmt.Errorf("%w: tone %q", ErrInvalid, s.Tone)
	}
	switch s.Language {
	case LanguageEnglish, LanguageRomanUrdu:
	default:
		return fmt.Errorf("%w: language %q", ErrInvalid, s.Language)
	}
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalid, s.Theme)
	}
	return nil
}
