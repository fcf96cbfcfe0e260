package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/metrics/exporters"
)

// eventTypes maps SSE event names to payload types.
func eventTypes() map[string]any {
	types := map[string]any{
		"renderer-state-changed":  events.RendererStateChangedEvent{},
		"hardware-status-changed": events.HardwareStatusChangedEvent{},
		"settings-changed":        events.SettingsChangedEvent{},
		"preset-saved":            events.PresetSavedEvent{},
		"preset-loaded":           events.PresetLoadedEvent{},
		"test-pattern":            events.TestPatternEvent{},
		"midi-device":             events.MIDIDeviceEvent{},
	}
	maps.Copy(types, exporters.GetEventTypes())
	return types
}

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Renderer, hardware, settings, preset, test pattern, MIDI device and render statistics events. The first event is the current renderer state.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.RendererStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.HardwareStatusChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SettingsChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PresetSavedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PresetLoadedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TestPatternEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MIDIDeviceEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RenderStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(events.RendererStateChangedEvent{
			Enabled:   s.options.Renderer.State().Enabled,
			Timestamp: now(),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
