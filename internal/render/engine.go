package render

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/keys"
	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/metrics"
)

// DefaultInterval is the frame period, about 30 frames per second.
const DefaultInterval = 33 * time.Millisecond

// FrameSink receives rendered frames. Submit must not block.
type FrameSink interface {
	Submit(frame Frame) bool
	Healthy() bool
}

// SettingsSource provides the effect settings snapshot for each frame.
type SettingsSource interface {
	Get() effects.Settings
	Replace(s effects.Settings) error
}

// KeySource is the key state the engine reads and retires.
type KeySource interface {
	Snapshot() keys.Snapshot
	Retire(expired []keys.Expired)
	Restore(snap keys.Snapshot)
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// State describes the engine for status reporting.
type State struct {
	Enabled            bool
	StatusIndicators   bool
	TestPatternRunning bool
	Status             Status
}

// Engine drives the renderer on a fixed schedule and hands frames to a sink.
type Engine struct {
	renderer *Renderer
	settings SettingsSource
	keys     KeySource
	sink     FrameSink
	eventBus EventPublisher
	logger   *slog.Logger
	interval time.Duration
	clock    func() time.Time
	timing   TestPatternTiming

	indicators atomic.Bool

	mu         sync.Mutex
	enabled    bool
	cancel     context.CancelFunc
	done       chan struct{}
	testing    bool
	testCancel context.CancelFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInterval sets the frame period.
func WithInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithEngineClock overrides the time source used for fades.
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithEventBus publishes engine state changes on bus.
func WithEventBus(bus EventPublisher) EngineOption {
	return func(e *Engine) {
		e.eventBus = bus
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTestPatternTiming overrides the test pattern delays.
func WithTestPatternTiming(t TestPatternTiming) EngineOption {
	return func(e *Engine) {
		e.timing = t
	}
}

// NewEngine creates a stopped engine.
func NewEngine(r *Renderer, settings SettingsSource, ks KeySource, sink FrameSink, opts ...EngineOption) *Engine {
	e := &Engine{
		renderer: r,
		settings: settings,
		keys:     ks,
		sink:     sink,
		interval: DefaultInterval,
		clock:    time.Now,
		timing:   DefaultTestPatternTiming(),
		logger:   logging.GetLogger("render"),
	}
	e.indicators.Store(true)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins ticking. Starting a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = true
	if !e.testing {
		e.startLoop()
	}
	e.mu.Unlock()

	metrics.SetRendererEnabled(true)
	e.logger.Info("Renderer started", "interval", e.interval)
	e.publishState(true)
}

// Stop halts ticking and blanks the strip. Key state is left untouched so a
// later Start resumes where it left off. A running test pattern is cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	e.stopLoop()
	testing := e.testing
	if testing && e.testCancel != nil {
		e.testCancel()
	}
	e.mu.Unlock()

	// A cancelled test pattern blanks the strip itself when it finishes.
	if !testing {
		e.blank()
	}

	metrics.SetRendererEnabled(false)
	e.logger.Info("Renderer stopped")
	e.publishState(false)
}

// Enabled reports whether the engine is ticking or will resume after a test pattern.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetStatusIndicators turns the status range on or off.
func (e *Engine) SetStatusIndicators(on bool) {
	e.indicators.Store(on)
}

// ToggleStatusIndicators flips the status range and returns the new value.
func (e *Engine) ToggleStatusIndicators() bool {
	for {
		cur := e.indicators.Load()
		if e.indicators.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// State returns a snapshot of the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Enabled:            e.enabled,
		StatusIndicators:   e.indicators.Load(),
		TestPatternRunning: e.testing,
		Status:             e.status(),
	}
}

// Layout returns the strip layout being rendered.
func (e *Engine) Layout() keys.Layout {
	return e.renderer.Layout()
}

func (e *Engine) status() Status {
	if !e.indicators.Load() {
		return StatusOff
	}
	if !e.sink.Healthy() {
		return StatusDegraded
	}
	return StatusRunning
}

// startLoop must be called with e.mu held.
func (e *Engine) startLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.run(ctx, done)
}

// stopLoop must be called with e.mu held. It waits for the current tick to finish.
func (e *Engine) stopLoop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel, e.done = nil, nil
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	start := time.Now()

	s := e.settings.Get()
	snap := e.keys.Snapshot()
	frame, expired := e.renderer.Render(&snap, s, e.status(), e.clock())
	if len(expired) > 0 {
		e.keys.Retire(expired)
	}
	e.sink.Submit(frame)

	metrics.ObserveFrame(time.Since(start), snap.Active()-len(expired))
}

func (e *Engine) blank() {
	e.sink.Submit(make(Frame, e.renderer.Layout().TotalLEDs))
}

func (e *Engine) publishState(enabled bool) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(events.RendererStateChangedEvent{
		Enabled:   enabled,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
