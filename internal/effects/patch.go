package effects

// PolicyPatch carries the policy fields an operator wants to change. Nil fields keep
// their current value.
type PolicyPatch struct {
	Mode                 *Mode    `json:"mode,omitempty" enum:"static,fade,sparkle" doc:"Effect mode"`
	VelocityBrightness   *bool    `json:"velocity_brightness,omitempty" doc:"Scale brightness by note velocity"`
	FadeDurationMs       *int     `json:"fade_duration_ms,omitempty" doc:"Release fade duration in milliseconds"`
	SustainFadeThreshold *float64 `json:"sustain_fade_threshold,omitempty" doc:"Brightness floor for sustained keys"`
	SparkleIntensity     *float64 `json:"sparkle_intensity,omitempty" doc:"Per-frame flicker strength"`
	DoubleLED            *bool    `json:"double_led,omitempty" doc:"Two adjacent LEDs per key"`
}

// PresetPatch carries the preset fields an operator wants to change.
type PresetPatch struct {
	Name                 *string `json:"name,omitempty" doc:"Preset name"`
	NoteColor            *string `json:"note_color,omitempty" example:"#0000ff" doc:"Note color as #rrggbb, or rainbow"`
	BackgroundColor      *string `json:"background_color,omitempty" example:"#100000" doc:"Background color as #rrggbb, or off"`
	BackgroundBrightness *int    `json:"background_brightness,omitempty" doc:"Background layer brightness 0-255"`
	Brightness           *int    `json:"brightness,omitempty" doc:"Global strip brightness 0-255"`
	SustainPedalHold     *bool   `json:"sustain_pedal_hold,omitempty" doc:"Keep sustained keys at full brightness"`
}

// Patch is a partial update of Settings.
type Patch struct {
	Policy PolicyPatch
	Preset PresetPatch
}

// Apply returns s with every non-nil field of p written over it. The result is not
// validated.
func (p Patch) Apply(s Settings) Settings {
	pp := p.Policy
	setIf(&s.Policy.Mode, pp.Mode)
	setIf(&s.Policy.VelocityBrightness, pp.VelocityBrightness)
	setIf(&s.Policy.FadeDurationMs, pp.FadeDurationMs)
	setIf(&s.Policy.SustainFadeThreshold, pp.SustainFadeThreshold)
	setIf(&s.Policy.SparkleIntensity, pp.SparkleIntensity)
	setIf(&s.Policy.DoubleLED, pp.DoubleLED)

	cp := p.Preset
	setIf(&s.Preset.Name, cp.Name)
	setIf(&s.Preset.NoteColor, cp.NoteColor)
	setIf(&s.Preset.BackgroundColor, cp.BackgroundColor)
	setIf(&s.Preset.BackgroundBrightness, cp.BackgroundBrightness)
	setIf(&s.Preset.Brightness, cp.Brightness)
	setIf(&s.Preset.SustainPedalHold, cp.SustainPedalHold)
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
