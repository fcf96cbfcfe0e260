package events

import "github.com/smazurov/keylight/internal/effects"

// Event type constants for kelindar/event.
const (
	TypeRendererStateChanged uint32 = iota + 1
	TypeHardwareStatusChanged
	TypeSettingsChanged
	TypePresetSaved
	TypePresetLoaded
	TypeTestPattern
	TypeMIDIDevice
	TypeRenderStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RendererStateChangedEvent is published when rendering is enabled or disabled.
type RendererStateChangedEvent struct {
	Enabled   bool   `json:"enabled" example:"true" doc:"Whether the renderer is ticking"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RendererStateChangedEvent.
func (e RendererStateChangedEvent) Type() uint32 { return TypeRendererStateChanged }

// HardwareStatusChangedEvent is published when the LED sink starts failing or recovers.
type HardwareStatusChangedEvent struct {
	Sink      string `json:"sink" example:"serial" doc:"Sink name"`
	Healthy   bool   `json:"healthy" example:"false" doc:"Whether the last frame write succeeded"`
	Error     string `json:"error,omitempty" example:"write /dev/ttyACM0: input/output error" doc:"Last write error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for HardwareStatusChangedEvent.
func (e HardwareStatusChangedEvent) Type() uint32 { return TypeHardwareStatusChanged }

// SettingsChangedEvent carries the settings after a successful change.
type SettingsChangedEvent struct {
	Settings  effects.Settings `json:"settings" doc:"Current effect policy and preset"`
	Timestamp string           `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// PresetSavedEvent is published after a preset has been written to storage.
type PresetSavedEvent struct {
	Name      string `json:"name" example:"evening" doc:"Preset name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PresetSavedEvent.
func (e PresetSavedEvent) Type() uint32 { return TypePresetSaved }

// PresetLoadedEvent is published after a preset replaced the live settings.
type PresetLoadedEvent struct {
	Name      string `json:"name" example:"evening" doc:"Preset name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PresetLoadedEvent.
func (e PresetLoadedEvent) Type() uint32 { return TypePresetLoaded }

// TestPatternEvent reports test pattern progress.
type TestPatternEvent struct {
	State     string `json:"state" example:"started" doc:"started, completed or cancelled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TestPatternEvent.
func (e TestPatternEvent) Type() uint32 { return TypeTestPattern }

// MIDIDeviceEvent reports MIDI input hotplug.
type MIDIDeviceEvent struct {
	Device    string `json:"device" example:"Digital Piano MIDI 1" doc:"MIDI input port name"`
	Action    string `json:"action" example:"connected" doc:"connected or disconnected"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MIDIDeviceEvent.
func (e MIDIDeviceEvent) Type() uint32 { return TypeMIDIDevice }

// RenderStatsEvent is a periodic summary of the render loop.
type RenderStatsEvent struct {
	FPS           string `json:"fps" example:"30.00" doc:"Frames submitted per second"`
	ActiveKeys    string `json:"active_keys" example:"4" doc:"Keys currently lit"`
	DroppedFrames string `json:"dropped_frames" example:"0" doc:"Frames replaced before the sink wrote them"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RenderStatsEvent.
func (e RenderStatsEvent) Type() uint32 { return TypeRenderStats }
