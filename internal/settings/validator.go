package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Validator normalizes settings payloads. Out-of-range values are
// clamped, unknown theme names fall back to defaults, and every
// correction is described in a human-readable adjustment message for
// the startup report.
type Validator struct {
	minScale float64
	maxScale float64
}

// NewValidator returns a validator with the recommended font scale
// range of 80% to 160%.
func NewValidator() *Validator {
	return &Validator{minScale: 0.8, maxScale: 1.6}
}

// Normalize returns a sanitized copy of raw plus the list of applied
// adjustments. Keys outside the known set pass through untouched.
func (v *Validator) Normalize(raw map[string]any) (map[string]any, []string) {
	data := make(map[string]any, len(raw))
	for key, value := range raw {
		data[key] = value
	}
	var messages []string

	for _, key := range defaultOrder {
		if _, ok := data[key]; !ok {
			data[key] = defaultValues[key]
			messages = append(messages, fmt.Sprintf("added '%s' with its default value", key))
		}
	}

	scale, scaleMsgs := v.normalizeFontScale(data["font_scale"])
	data["font_scale"] = scale
	messages = append(messages, scaleMsgs...)

	autosave, autosaveMsgs := v.normalizeAutosave(data["autosave_interval_minutes"])
	data["autosave_interval_minutes"] = autosave
	messages = append(messages, autosaveMsgs...)

	volume, volumeMsgs := v.normalizeVolume(data["audio_volume"])
	data["audio_volume"] = volume
	messages = append(messages, volumeMsgs...)

	for _, field := range []string{"accessibility_mode", "shortcuts_enabled"} {
		value, note := normalizeBool(field, data[field])
		data[field] = value
		if note != "" {
			messages = append(messages, note)
		}
	}

	for _, field := range []string{"theme", "contrast_theme", "color_mode"} {
		value, note := normalizeTheme(field, data[field])
		data[field] = value
		if note != "" {
			messages = append(messages, note)
		}
	}

	return data, messages
}

func (v *Validator) normalizeFontScale(raw any) (float64, []string) {
	var messages []string
	value, ok := toFloat(raw)
	if !ok {
		value = defaultValues["font_scale"].(float64)
		messages = append(messages, "font scale was invalid and has been reset to 120%")
	}

	clamped := math.Max(v.minScale, math.Min(v.maxScale, value))
	if math.Abs(clamped-value) > 1e-9 {
		messages = append(messages, fmt.Sprintf("font scale adjusted into the recommended range (%d-%d%%)",
			int(v.minScale*100), int(v.maxScale*100)))
	}
	return round2(clamped), messages
}

func (v *Validator) normalizeAutosave(raw any) (int, []string) {
	var messages []string
	value, ok := toInt(raw)
	if !ok {
		value = defaultValues["autosave_interval_minutes"].(int)
		messages = append(messages, "autosave interval was invalid and has been reset to 10 minutes")
	}

	clamped := value
	if clamped < 1 {
		clamped = 1
	}
	if clamped > 120 {
		clamped = 120
	}
	if clamped != value {
		messages = append(messages, "autosave interval limited to 1-120 minutes")
	}
	return clamped, messages
}

func (v *Validator) normalizeVolume(raw any) (float64, []string) {
	var messages []string
	value, ok := toFloat(raw)
	if !ok {
		value = defaultValues["audio_volume"].(float64)
		messages = append(messages, "audio volume was invalid and has been reset to 80%")
	}

	clamped := math.Max(0, math.Min(1, value))
	if math.Abs(clamped-value) > 1e-9 {
		messages = append(messages, "audio volume limited to the 0-100% range")
	}
	return round2(clamped), messages
}

func normalizeBool(field string, raw any) (bool, string) {
	value := defaultValues[field].(bool)
	switch typed := raw.(type) {
	case bool:
		return typed, ""
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true", "yes", "on":
			value = true
		default:
			value = false
		}
	case float64:
		value = typed != 0
	case int:
		value = typed != 0
	}

	label := "keyboard shortcuts"
	if field == "accessibility_mode" {
		label = "accessibility mode"
	}
	state := "inactive"
	if value {
		state = "active"
	}
	return value, fmt.Sprintf("%s set to %s", label, state)
}

func normalizeTheme(field string, raw any) (string, string) {
	value := defaultValues[field].(string)
	candidate := ""
	if typed, ok := raw.(string); ok {
		candidate = strings.ToLower(strings.TrimSpace(typed))
	}
	for _, theme := range themeOrder {
		if candidate == theme {
			value = theme
			break
		}
	}

	if typed, ok := raw.(string); ok && typed == value {
		return value, ""
	}
	labels := map[string]string{
		"theme":          "default theme",
		"contrast_theme": "contrast theme",
		"color_mode":     "color scheme",
	}
	return value, fmt.Sprintf("%s set to '%s'", labels[field], value)
}

func toFloat(raw any) (float64, bool) {
	switch typed := raw.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return value, err == nil
	default:
		return 0, false
	}
}

func toInt(raw any) (int, bool) {
	switch typed := raw.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case string:
		value, err := strconv.Atoi(strings.TrimSpace(typed))
		return value, err == nil
	default:
		return 0, false
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
