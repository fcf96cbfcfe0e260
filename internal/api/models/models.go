// Package models holds the request and response shapes of the control API.
package models

import (
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/midi"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// LEDStatusData is the renderer and hardware state.
type LEDStatusData struct {
	Enabled            bool   `json:"enabled" example:"true" doc:"Whether the renderer is ticking"`
	Status             string `json:"status" example:"running" enum:"off,running,degraded,testing" doc:"Status indicator state"`
	StatusIndicators   bool   `json:"status_indicators" example:"true" doc:"Whether the status LEDs are lit"`
	TestPatternRunning bool   `json:"test_pattern_running" example:"false" doc:"Whether a test pattern is playing"`
	Sink               string `json:"sink" example:"serial:/dev/ttyACM0" doc:"LED output"`
	HardwareHealthy    bool   `json:"hardware_healthy" example:"true" doc:"Whether the last frame write succeeded"`
	HardwareError      string `json:"hardware_error,omitempty" doc:"Last write error"`
	Pedal              bool   `json:"pedal" example:"false" doc:"Sustain pedal down"`
	ActiveKeys         int    `json:"active_keys" example:"3" doc:"Keys that are not idle"`
	TotalLEDs          int    `json:"total_leds" example:"144" doc:"Strip length"`
}

type LEDStatusResponse struct {
	Body LEDStatusData
}

// BrightnessRequest sets the global brightness.
type BrightnessRequest struct {
	Body struct {
		Brightness int `json:"brightness" minimum:"0" maximum:"255" example:"128" doc:"Global strip brightness"`
	}
}

// ToggleData reports a boolean after a toggle.
type ToggleData struct {
	Enabled bool `json:"enabled" example:"true" doc:"New value"`
}

type ToggleResponse struct {
	Body ToggleData
}

// SettingsResponse carries the full effect settings.
type SettingsResponse struct {
	Body effects.Settings
}

// PolicyPatchRequest is a partial policy update.
type PolicyPatchRequest struct {
	Body effects.PolicyPatch
}

// PresetPatchRequest is a partial preset update.
type PresetPatchRequest struct {
	Body effects.PresetPatch
}

// PresetNameInput identifies a preset record.
type PresetNameInput struct {
	Name string `path:"name" pattern:"^[A-Za-z0-9_-]{1,64}$" example:"evening" doc:"Preset name"`
}

type PresetListData struct {
	Presets []string `json:"presets" doc:"Saved preset names"`
	Count   int      `json:"count" example:"2" doc:"Number of presets"`
}

type PresetListResponse struct {
	Body PresetListData
}

// TestPatternData reports the test pattern state.
type TestPatternData struct {
	State string `json:"state" example:"started" enum:"started,cancelled,idle" doc:"Test pattern state"`
}

type TestPatternResponse struct {
	Status int
	Body   TestPatternData
}

// MIDIInputsData lists MIDI input ports.
type MIDIInputsData struct {
	Inputs    []midi.Input `json:"inputs" doc:"MIDI input ports"`
	Connected string       `json:"connected" example:"Digital Piano MIDI 1" doc:"Connected input, empty when none"`
}

type MIDIInputsResponse struct {
	Body MIDIInputsData
}
