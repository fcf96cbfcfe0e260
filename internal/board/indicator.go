package board

import (
	"log/slog"
	"sync"

	"github.com/smazurov/keylight/internal/events"
)

// Indicator mirrors renderer and strip health on the board status LED:
// solid while rendering to healthy sinks, blinking while any sink fails,
// off while rendering is disabled.
type Indicator struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	unsubscribe []func()

	mu      sync.Mutex
	enabled bool
	sinks   map[string]bool // sink name -> healthy
}

// NewIndicator creates an indicator driven by bus events.
func NewIndicator(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Indicator {
	return &Indicator{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		sinks:      make(map[string]bool),
	}
}

// Start subscribes to renderer and hardware events.
func (i *Indicator) Start() {
	i.unsubscribe = append(i.unsubscribe,
		i.eventBus.Subscribe(func(e events.RendererStateChangedEvent) {
			i.mu.Lock()
			i.enabled = e.Enabled
			i.mu.Unlock()
			i.update()
		}),
		i.eventBus.Subscribe(func(e events.HardwareStatusChangedEvent) {
			i.mu.Lock()
			i.sinks[e.Sink] = e.Healthy
			i.mu.Unlock()
			i.update()
		}),
	)
	i.logger.Info("Board indicator started")
}

// Stop unsubscribes and switches the LED off.
func (i *Indicator) Stop() {
	for _, unsub := range i.unsubscribe {
		unsub()
	}
	i.unsubscribe = nil
	if err := i.controller.Set(StatusLED, false, ""); err != nil {
		i.logger.Warn("Failed to switch board LED off", "error", err)
	}
	i.logger.Info("Board indicator stopped")
}

// update sets the LED from the aggregate state.
func (i *Indicator) update() {
	i.mu.Lock()
	enabled := i.enabled
	healthy := true
	for _, ok := range i.sinks {
		if !ok {
			healthy = false
			break
		}
	}
	i.mu.Unlock()

	var err error
	switch {
	case !enabled:
		err = i.controller.Set(StatusLED, false, "")
	case healthy:
		err = i.controller.Set(StatusLED, true, PatternSolid)
	default:
		err = i.controller.Set(StatusLED, true, PatternBlink)
	}
	if err != nil {
		i.logger.Warn("Failed to set board LED", "error", err)
		return
	}
	i.logger.Debug("Board LED updated", "enabled", enabled, "healthy", healthy)
}
