// Package effects holds the operator-tunable effect policy and color preset, the
// atomic snapshot the renderer reads them through, and named preset persistence.
package effects

import (
	"math"
	"strings"
	"time"

	"github.com/smazurov/keylight/internal/color"
)

// Mode selects how keys animate after release.
type Mode string

// Effect modes.
const (
	ModeStatic  Mode = "static"
	ModeFade    Mode = "fade"
	ModeSparkle Mode = "sparkle"
)

// Special color values.
const (
	NoteColorRainbow   = "rainbow"
	BackgroundColorOff = "off"
)

// Policy is the animation behavior.
type Policy struct {
	Mode                 Mode    `toml:"mode" yaml:"mode" json:"mode" enum:"static,fade,sparkle" doc:"Effect mode"`
	VelocityBrightness   bool    `toml:"velocity_brightness" yaml:"velocity_brightness" json:"velocity_brightness" doc:"Scale brightness by note velocity"`
	FadeDurationMs       int     `toml:"fade_duration_ms" yaml:"fade_duration_ms" json:"fade_duration_ms" minimum:"1" doc:"Release fade duration in milliseconds"`
	SustainFadeThreshold float64 `toml:"sustain_fade_threshold" yaml:"sustain_fade_threshold" json:"sustain_fade_threshold" minimum:"0" maximum:"1" doc:"Brightness floor for sustained keys"`
	SparkleIntensity     float64 `toml:"sparkle_intensity" yaml:"sparkle_intensity" json:"sparkle_intensity" minimum:"0" maximum:"1" doc:"Per-frame flicker strength"`
	DoubleLED            bool    `toml:"double_led" yaml:"double_led" json:"double_led" doc:"Two adjacent LEDs per key"`
}

// Preset is the color scheme. It is saved and loaded together with the Policy.
type Preset struct {
	Name                 string `toml:"name" yaml:"name" json:"name" doc:"Preset name"`
	NoteColor            string `toml:"note_color" yaml:"note_color" json:"note_color" example:"#0000ff" doc:"Note color as #rrggbb, or rainbow"`
	BackgroundColor      string `toml:"background_color" yaml:"background_color" json:"background_color" example:"off" doc:"Background color as #rrggbb, or off"`
	BackgroundBrightness int    `toml:"background_brightness" yaml:"background_brightness" json:"background_brightness" minimum:"0" maximum:"255" doc:"Background layer brightness"`
	Brightness           int    `toml:"brightness" yaml:"brightness" json:"brightness" minimum:"0" maximum:"255" doc:"Global strip brightness"`
	SustainPedalHold     bool   `toml:"sustain_pedal_hold" yaml:"sustain_pedal_hold" json:"sustain_pedal_hold" doc:"Keep sustained keys at full brightness"`
}

// Settings is the unit the renderer reads and a preset record stores.
type Settings struct {
	Policy Policy `toml:"policy" yaml:"policy" json:"policy"`
	Preset Preset `toml:"preset" yaml:"preset" json:"preset"`
}

// Defaults returns the settings used when no preset has been saved.
func Defaults() Settings {
	return Settings{
		Policy: Policy{
			Mode:                 ModeFade,
			VelocityBrightness:   true,
			FadeDurationMs:       600,
			SustainFadeThreshold: 0.3,
			SparkleIntensity:     0.25,
		},
		Preset: Preset{
			Name:                 "default",
			NoteColor:            NoteColorRainbow,
			BackgroundColor:      BackgroundColorOff,
			BackgroundBrightness: 255,
			Brightness:           128,
		},
	}
}

// Validate checks every field range.
func (s Settings) Validate() error {
	p := s.Policy
	switch p.Mode {
	case ModeStatic, ModeFade, ModeSparkle:
	default:
		return validationError("mode", "unknown mode %q", p.Mode)
	}
	if p.FadeDurationMs <= 0 {
		return validationError("fade_duration_ms", "must be positive, got %d", p.FadeDurationMs)
	}
	if !isFraction(p.SustainFadeThreshold) {
		return validationError("sustain_fade_threshold", "must be within [0,1], got %v", p.SustainFadeThreshold)
	}
	if !isFraction(p.SparkleIntensity) {
		return validationError("sparkle_intensity", "must be within [0,1], got %v", p.SparkleIntensity)
	}

	c := s.Preset
	if !isByte(c.Brightness) {
		return validationError("brightness", "must be within [0,255], got %d", c.Brightness)
	}
	if !isByte(c.BackgroundBrightness) {
		return validationError("background_brightness", "must be within [0,255], got %d", c.BackgroundBrightness)
	}
	if _, _, err := parseNoteColor(c.NoteColor); err != nil {
		return validationError("note_color", "%v", err)
	}
	if _, _, err := parseBackground(c.BackgroundColor); err != nil {
		return validationError("background_color", "%v", err)
	}
	return nil
}

// Fades reports whether released keys decay rather than switching off at once.
func (p Policy) Fades() bool {
	return p.Mode != ModeStatic
}

// FadeDuration returns the configured fade as a time.Duration.
func (p Policy) FadeDuration() time.Duration {
	return time.Duration(p.FadeDurationMs) * time.Millisecond
}

// NoteRGB returns the note color override, or ok=false for the per-note rainbow.
// Settings must have passed Validate.
func (c Preset) NoteRGB() (color.RGB, bool) {
	rgb, ok, _ := parseNoteColor(c.NoteColor)
	return rgb, ok
}

// BackgroundRGB returns the background color, or ok=false when the background is off.
func (c Preset) BackgroundRGB() (color.RGB, bool) {
	rgb, ok, _ := parseBackground(c.BackgroundColor)
	return rgb, ok
}

func parseNoteColor(s string) (color.RGB, bool, error) {
	if s == "" || strings.EqualFold(s, NoteColorRainbow) {
		return color.RGB{}, false, nil
	}
	rgb, err := color.Parse(s)
	return rgb, err == nil, err
}

func parseBackground(s string) (color.RGB, bool, error) {
	if s == "" || strings.EqualFold(s, BackgroundColorOff) {
		return color.RGB{}, false, nil
	}
	rgb, err := color.Parse(s)
	return rgb, err == nil, err
}

func isFraction(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

func isByte(v int) bool {
	return v >= 0 && v <= 255
}
