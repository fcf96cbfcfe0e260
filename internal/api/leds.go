package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/keylight/internal/api/models"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/events"
)

func (s *Server) ledStatus() models.LEDStatusData {
	st := s.options.Renderer.State()
	snap := s.options.Keys.Snapshot()
	return models.LEDStatusData{
		Enabled:            st.Enabled,
		Status:             st.Status.String(),
		StatusIndicators:   st.StatusIndicators,
		TestPatternRunning: st.TestPatternRunning,
		Sink:               s.options.Output.Name(),
		HardwareHealthy:    s.options.Output.Healthy(),
		HardwareError:      s.options.Output.LastError(),
		Pedal:              snap.Pedal,
		ActiveKeys:         snap.Active(),
		TotalLEDs:          s.options.Renderer.Layout().TotalLEDs,
	}
}

// registerLEDRoutes registers renderer control endpoints.
func (s *Server) registerLEDRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-status",
		Method:      http.MethodGet,
		Path:        "/api/led/status",
		Summary:     "LED Status",
		Description: "Renderer, hardware and key state",
		Tags:        []string{"led"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LEDStatusResponse, error) {
		return &models.LEDStatusResponse{Body: s.ledStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "enable-led",
		Method:      http.MethodPost,
		Path:        "/api/led/enable",
		Summary:     "Enable Rendering",
		Description: "Start the render loop. Key state is kept across disable and enable.",
		Tags:        []string{"led"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LEDStatusResponse, error) {
		s.options.Renderer.Start()
		return &models.LEDStatusResponse{Body: s.ledStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "disable-led",
		Method:      http.MethodPost,
		Path:        "/api/led/disable",
		Summary:     "Disable Rendering",
		Description: "Stop the render loop and blank the strip",
		Tags:        []string{"led"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LEDStatusResponse, error) {
		s.options.Renderer.Stop()
		return &models.LEDStatusResponse{Body: s.ledStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-brightness",
		Method:      http.MethodPost,
		Path:        "/api/led/brightness",
		Summary:     "Set Brightness",
		Description: "Set the global strip brightness (0-255)",
		Tags:        []string{"led"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BrightnessRequest) (*models.SettingsResponse, error) {
		b := input.Body.Brightness
		settings, err := s.options.Settings.Set(effects.Patch{Preset: effects.PresetPatch{Brightness: &b}})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.SettingsResponse{Body: settings}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-status-leds",
		Method:      http.MethodPost,
		Path:        "/api/led/status_leds/toggle",
		Summary:     "Toggle Status LEDs",
		Description: "Switch the status indicator range on or off",
		Tags:        []string{"led"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ToggleResponse, error) {
		on := s.options.Renderer.ToggleStatusIndicators()
		return &models.ToggleResponse{Body: models.ToggleData{Enabled: on}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-double-led",
		Method:      http.MethodPost,
		Path:        "/api/led/double/toggle",
		Summary:     "Toggle Double LED",
		Description: "Switch between one and two LEDs per key",
		Tags:        []string{"led"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ToggleResponse, error) {
		double := !s.options.Settings.Get().Policy.DoubleLED
		settings, err := s.options.Settings.Set(effects.Patch{Policy: effects.PolicyPatch{DoubleLED: &double}})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.ToggleResponse{Body: models.ToggleData{Enabled: settings.Policy.DoubleLED}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-test-pattern",
		Method:        http.MethodPost,
		Path:          "/api/led/test",
		Summary:       "Run Test Pattern",
		Description:   "Play the hardware test sweep. Rendering resumes when it finishes. MIDI input during the sweep is discarded and key state returns to what it was before, so a key held at the start stays lit until it is struck and released again.",
		Tags:          []string{"led"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 409},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TestPatternResponse, error) {
		// The pattern outlives the request.
		if err := s.options.Renderer.StartTestPattern(context.WithoutCancel(ctx)); err != nil {
			return nil, s.mapError(err)
		}
		return &models.TestPatternResponse{
			Status: http.StatusAccepted,
			Body:   models.TestPatternData{State: "started"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-test-pattern",
		Method:      http.MethodDelete,
		Path:        "/api/led/test",
		Summary:     "Cancel Test Pattern",
		Description: "Stop a running test pattern and restore the previous state",
		Tags:        []string{"led"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TestPatternResponse, error) {
		state := "idle"
		if s.options.Renderer.CancelTestPattern() {
			state = "cancelled"
		}
		return &models.TestPatternResponse{
			Status: http.StatusOK,
			Body:   models.TestPatternData{State: state},
		}, nil
	})
}

// registerSettingsRoutes registers effect policy and color preset endpoints.
func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/api/led/settings",
		Summary:     "Get Settings",
		Description: "Current effect policy and color preset",
		Tags:        []string{"settings"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SettingsResponse, error) {
		return &models.SettingsResponse{Body: s.options.Settings.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-policy",
		Method:      http.MethodPatch,
		Path:        "/api/led/policy",
		Summary:     "Update Effect Policy",
		Description: "Change policy fields. Omitted fields keep their value; an invalid field rejects the whole update.",
		Tags:        []string{"settings"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PolicyPatchRequest) (*models.SettingsResponse, error) {
		settings, err := s.options.Settings.Set(effects.Patch{Policy: input.Body})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.SettingsResponse{Body: settings}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-preset",
		Method:      http.MethodPatch,
		Path:        "/api/led/preset",
		Summary:     "Update Color Preset",
		Description: "Change color preset fields. Omitted fields keep their value; an invalid field rejects the whole update.",
		Tags:        []string{"settings"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PresetPatchRequest) (*models.SettingsResponse, error) {
		settings, err := s.options.Settings.Set(effects.Patch{Preset: input.Body})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.SettingsResponse{Body: settings}, nil
	})
}

// registerPresetRoutes registers named preset storage endpoints.
func (s *Server) registerPresetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/led/presets",
		Summary:     "List Presets",
		Tags:        []string{"presets"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.PresetListResponse, error) {
		names, err := s.options.Settings.Presets()
		if err != nil {
			return nil, s.mapError(err)
		}
		if names == nil {
			names = []string{}
		}
		return &models.PresetListResponse{Body: models.PresetListData{Presets: names, Count: len(names)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "save-preset",
		Method:      http.MethodPost,
		Path:        "/api/led/presets/{name}/save",
		Summary:     "Save Preset",
		Description: "Store the current settings under name, replacing any existing record",
		Tags:        []string{"presets"},
		Errors:      []int{401, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PresetNameInput) (*models.SettingsResponse, error) {
		settings, err := s.options.Settings.Save(input.Name)
		if err != nil {
			return nil, s.mapError(err)
		}
		s.eventBus.Publish(events.PresetSavedEvent{Name: input.Name, Timestamp: now()})
		return &models.SettingsResponse{Body: settings}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "load-preset",
		Method:      http.MethodPost,
		Path:        "/api/led/presets/{name}/load",
		Summary:     "Load Preset",
		Description: "Replace the live settings with a stored record",
		Tags:        []string{"presets"},
		Errors:      []int{401, 404, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PresetNameInput) (*models.SettingsResponse, error) {
		settings, err := s.options.Settings.Load(input.Name)
		if err != nil {
			return nil, s.mapError(err)
		}
		s.eventBus.Publish(events.PresetLoadedEvent{Name: input.Name, Timestamp: now()})
		return &models.SettingsResponse{Body: settings}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-preset",
		Method:        http.MethodDelete,
		Path:          "/api/led/presets/{name}",
		Summary:       "Delete Preset",
		Tags:          []string{"presets"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.PresetNameInput) (*struct{}, error) {
		if err := s.options.Settings.Delete(input.Name); err != nil {
			return nil, s.mapError(err)
		}
		return nil, nil
	})
}

// registerMIDIRoutes registers MIDI device endpoints.
func (s *Server) registerMIDIRoutes() {
	if s.options.MIDI == nil {
		s.logger.Debug("MIDI watcher not available, skipping MIDI routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-midi-inputs",
		Method:      http.MethodGet,
		Path:        "/api/midi/inputs",
		Summary:     "List MIDI Inputs",
		Description: "MIDI input ports and which one is connected",
		Tags:        []string{"midi"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MIDIInputsResponse, error) {
		inputs, err := s.options.MIDI.Inputs()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list MIDI inputs", err)
		}
		return &models.MIDIInputsResponse{
			Body: models.MIDIInputsData{Inputs: inputs, Connected: s.options.MIDI.Connected()},
		}, nil
	})
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
