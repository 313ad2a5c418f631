// Package settings reads and repairs the persisted user preferences.
// Broken payloads never break startup: missing files are seeded with
// defaults, corrupt files are replaced, and out-of-range values are
// clamped with a note for the startup report.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
)

// themeOrder lists the selectable appearance modes, accessible first.
var themeOrder = []string{"accessible", "high_contrast", "light", "dark"}

// defaultOrder fixes the key order used when seeding missing values so
// adjustment messages stay deterministic.
var defaultOrder = []string{
	"font_scale",
	"theme",
	"autosave_interval_minutes",
	"accessibility_mode",
	"shortcuts_enabled",
	"contrast_theme",
	"color_mode",
	"audio_volume",
}

var defaultValues = map[string]any{
	"font_scale":                1.2,
	"theme":                     "light",
	"autosave_interval_minutes": 10,
	"accessibility_mode":        true,
	"shortcuts_enabled":         true,
	"contrast_theme":            "accessible",
	"color_mode":                "accessible",
	"audio_volume":              0.8,
}

// Defaults returns a fresh copy of the default settings payload.
func Defaults() map[string]any {
	payload := make(map[string]any, len(defaultValues))
	for key, value := range defaultValues {
		payload[key] = value
	}
	return payload
}

// Themes returns the selectable theme names in display order.
func Themes() []string {
	return append([]string(nil), themeOrder...)
}

// Preferences is typed access to the stored configuration values.
// Unknown keys survive load/save cycles through Extra.
type Preferences struct {
	FontScale         float64
	Theme             string
	AutosaveInterval  int
	AccessibilityMode bool
	ShortcutsEnabled  bool
	ContrastTheme     string
	ColorMode         string
	AudioVolume       float64
	Extra             map[string]any
}

// FromMap builds Preferences from a sanitized payload.
func FromMap(payload map[string]any) Preferences {
	prefs := Preferences{Extra: make(map[string]any)}
	for key, value := range payload {
		switch key {
		case "font_scale":
			prefs.FontScale, _ = toFloat(value)
		case "theme":
			prefs.Theme, _ = value.(string)
		case "autosave_interval_minutes":
			prefs.AutosaveInterval, _ = toInt(value)
		case "accessibility_mode":
			prefs.AccessibilityMode, _ = value.(bool)
		case "shortcuts_enabled":
			prefs.ShortcutsEnabled, _ = value.(bool)
		case "contrast_theme":
			prefs.ContrastTheme, _ = value.(string)
		case "color_mode":
			prefs.ColorMode, _ = value.(string)
		case "audio_volume":
			prefs.AudioVolume, _ = toFloat(value)
		default:
			prefs.Extra[key] = value
		}
	}
	return prefs
}

// ToMap returns a JSON-serializable payload including extras.
func (p Preferences) ToMap() map[string]any {
	payload := map[string]any{
		"font_scale":                p.FontScale,
		"theme":                     p.Theme,
		"autosave_interval_minutes": p.AutosaveInterval,
		"accessibility_mode":        p.AccessibilityMode,
		"shortcuts_enabled":         p.ShortcutsEnabled,
		"contrast_theme":            p.ContrastTheme,
		"color_mode":                p.ColorMode,
		"audio_volume":              p.AudioVolume,
	}
	for key, value := range p.Extra {
		payload[key] = value
	}
	return payload
}

// Store loads and persists the settings file with validation.
type Store struct {
	path      string
	validator *Validator
	logger    *slog.Logger
}

// NewStore returns a store for the settings file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, validator: NewValidator(), logger: logger}
}

// Load returns the stored preferences plus the adjustments applied to
// repair them. A missing file is seeded with defaults; a corrupt file
// is replaced with defaults. Only an unreadable file is an error.
func (s *Store) Load() (Preferences, []string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("settings file missing, seeding defaults", "path", s.path)
		defaults := Defaults()
		s.writePayload(defaults)
		return FromMap(defaults), nil, nil
	}
	if err != nil {
		return FromMap(Defaults()), nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Error("settings file corrupt, restoring defaults", "path", s.path, "error", err)
		defaults := Defaults()
		s.writePayload(defaults)
		return FromMap(defaults), []string{"settings file was corrupt, defaults restored"}, nil
	}

	sanitized, adjustments := s.validator.Normalize(raw)
	if changed(raw, sanitized) {
		s.writePayload(sanitized)
		if len(adjustments) > 0 {
			s.logger.Info("settings corrected", "adjustments", len(adjustments))
		}
	}
	return FromMap(sanitized), adjustments, nil
}

// Save persists the preferences as indented JSON.
func (s *Store) Save(prefs Preferences) error {
	data, err := json.MarshalIndent(prefs.ToMap(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

// writePayload persists a raw payload, logging instead of failing: a
// read-only disk must not block startup.
func (s *Store) writePayload(payload map[string]any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		s.logger.Error("could not encode settings", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Error("could not create settings dir", "error", err)
		return
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		s.logger.Error("could not write settings", "path", s.path, "error", err)
	}
}

// changed reports whether sanitizing altered the payload. JSON numbers
// arrive as float64, so integer-valued corrections compare numerically.
func changed(before, after map[string]any) bool {
	if len(before) != len(after) {
		return true
	}
	for key, b := range after {
		a, ok := before[key]
		if !ok {
			return true
		}
		if !looselyEqual(a, b) {
			return true
		}
	}
	return false
}

func looselyEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			_, aStr := a.(string)
			_, bStr := b.(string)
			// Strings only count as equal to strings; "1.2" was still
			// repaired to a number.
			if aStr != bStr {
				return false
			}
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
