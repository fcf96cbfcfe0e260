package midi

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/smazurov/keylight/internal/events"
)

// DefaultRescanInterval is how often the watcher looks for devices.
const DefaultRescanInterval = time.Second

// Default name patterns, matched case-insensitively as substrings.
var (
	DefaultPreferred = []string{"Piano", "Clavinova", "Digital"}
	DefaultExcluded  = []string{"Midi Through", "Through Port", "Dummy"}
)

// Target is the key state the watcher drives. *keys.Store satisfies it.
type Target interface {
	Handler
	ReleaseAll()
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// WatcherConfig holds device selection settings.
type WatcherConfig struct {
	Preferred      []string
	Excluded       []string
	RescanInterval time.Duration
}

// Input describes a MIDI input port.
type Input struct {
	Name      string `json:"name" example:"Digital Piano MIDI 1" doc:"Port name"`
	Excluded  bool   `json:"excluded" doc:"Matches an excluded pattern"`
	Preferred bool   `json:"preferred" doc:"Matches a preferred pattern"`
	Connected bool   `json:"connected" doc:"Currently listened to"`
}

// Watcher keeps one MIDI input connected, following hot-plug. When the device
// goes away every key is released, since no note-off will arrive for it.
type Watcher struct {
	drv      Driver
	target   Target
	cfg      WatcherConfig
	eventBus EventPublisher
	logger   *slog.Logger

	mu       sync.Mutex
	port     Port
	stopFn   func()
	selected string

	cancel context.CancelFunc
	wg     sync.WaitGroup
	rescan chan struct{}
}

// NewWatcher creates a watcher. Call Start to begin scanning.
func NewWatcher(drv Driver, target Target, cfg WatcherConfig, eventBus EventPublisher, logger *slog.Logger) *Watcher {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}
	if cfg.Excluded == nil {
		cfg.Excluded = DefaultExcluded
	}
	if cfg.Preferred == nil {
		cfg.Preferred = DefaultPreferred
	}
	return &Watcher{
		drv:      drv,
		target:   target,
		cfg:      cfg,
		eventBus: eventBus,
		logger:   logger,
		rescan:   make(chan struct{}, 1),
	}
}

// Start scans immediately and then on every rescan interval.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("MIDI watcher started", "rescan", w.cfg.RescanInterval)
}

// Stop stops scanning and closes the connected device.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	w.closeLocked()
	w.mu.Unlock()
	w.logger.Info("MIDI watcher stopped")
}

// Connected returns the connected input name, or "".
func (w *Watcher) Connected() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// Inputs lists every input port with its selection flags.
func (w *Watcher) Inputs() ([]Input, error) {
	names, err := w.drv.Inputs()
	if err != nil {
		return nil, err
	}
	connected := w.Connected()
	out := make([]Input, 0, len(names))
	for _, name := range names {
		out = append(out, Input{
			Name:      name,
			Excluded:  matchesAny(name, w.cfg.Excluded),
			Preferred: matchesAny(name, w.cfg.Preferred),
			Connected: name == connected,
		})
	}
	return out, nil
}

// Rescan asks for a scan without waiting for the next interval. Requests made
// while one is pending are coalesced.
func (w *Watcher) Rescan() {
	select {
	case w.rescan <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.RescanInterval)
	defer ticker.Stop()

	w.scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		case <-w.rescan:
			w.scan()
		}
	}
}

// scan drops a vanished device and connects when nothing is connected.
func (w *Watcher) scan() {
	w.mu.Lock()
	defer w.mu.Unlock()

	inputs, err := w.listInputs()
	if err != nil {
		w.logger.Error("Failed to list MIDI inputs", "error", err)
		return
	}

	if w.selected != "" {
		for _, name := range inputs {
			if name == w.selected {
				return
			}
		}
		w.logger.Warn("MIDI device disappeared", "device", w.selected)
		w.disconnectLocked()
	}

	name, ok := pickInput(inputs, w.cfg.Preferred)
	if !ok {
		return
	}
	if err := w.connectLocked(name); err != nil {
		w.logger.Error("MIDI connect failed", "device", name, "error", err)
	}
}

// listInputs returns input names that are not excluded.
func (w *Watcher) listInputs() ([]string, error) {
	all, err := w.drv.Inputs()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range all {
		if matchesAny(name, w.cfg.Excluded) {
			w.logger.Debug("MIDI input excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (w *Watcher) connectLocked(name string) error {
	port, err := w.drv.Open(name)
	if err != nil {
		return err
	}
	stop, err := port.Listen(func(msg midi.Message) {
		Dispatch(w.target, msg)
	}, func(listenErr error) {
		w.logger.Warn("MIDI listener error", "device", name, "error", listenErr)
		// The listener goroutine must not take the watcher lock.
		go w.dropDevice(name)
	})
	if err != nil {
		_ = port.Close()
		return err
	}

	w.port, w.stopFn, w.selected = port, stop, name
	w.logger.Info("MIDI device connected", "device", name)
	w.publish(name, "connected")
	return nil
}

// dropDevice disconnects name if it is still the selected device and asks for a rescan.
func (w *Watcher) dropDevice(name string) {
	w.mu.Lock()
	if w.selected == name {
		w.disconnectLocked()
	}
	w.mu.Unlock()
	w.Rescan()
}

// disconnectLocked closes the device and releases every key.
func (w *Watcher) disconnectLocked() {
	name := w.selected
	w.closeLocked()
	w.target.ReleaseAll()
	w.publish(name, "disconnected")
}

func (w *Watcher) closeLocked() {
	if w.stopFn != nil {
		w.stopFn()
		w.stopFn = nil
	}
	if w.port != nil {
		_ = w.port.Close()
		w.port = nil
	}
	w.selected = ""
}

func (w *Watcher) publish(device, action string) {
	if w.eventBus == nil {
		return
	}
	w.eventBus.Publish(events.MIDIDeviceEvent{
		Device:    device,
		Action:    action,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// pickInput returns the first input matching a preferred pattern, in pattern
// order, else the first input by name.
func pickInput(inputs []string, preferred []string) (string, bool) {
	if len(inputs) == 0 {
		return "", false
	}
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsFold(name, pat) {
				return name, true
			}
		}
	}
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	return sorted[0], true
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsFold(name, pat) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
