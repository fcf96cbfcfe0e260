package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Publishing on a nil bus is a no-op,
// so components can run without one in tests and one-shot commands.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case RendererStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case HardwareStatusChangedEvent:
		event.Publish(b.dispatcher, e)
	case SettingsChangedEvent:
		event.Publish(b.dispatcher, e)
	case PresetSavedEvent:
		event.Publish(b.dispatcher, e)
	case PresetLoadedEvent:
		event.Publish(b.dispatcher, e)
	case TestPatternEvent:
		event.Publish(b.dispatcher, e)
	case MIDIDeviceEvent:
		event.Publish(b.dispatcher, e)
	case RenderStatsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e HardwareStatusChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RendererStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HardwareStatusChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettingsChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PresetSavedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PresetLoadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TestPatternEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MIDIDeviceEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RenderStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
