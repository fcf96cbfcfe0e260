package render

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/keys"
)

// ErrTestPatternRunning is returned when a test pattern is requested while one runs.
var ErrTestPatternRunning = errors.New("test pattern already running")

// TestPatternTiming holds the test pattern delays.
type TestPatternTiming struct {
	Settle time.Duration // pause after lighting the status range and after the blue sweep
	Step   time.Duration // per key during sweeps
}

// DefaultTestPatternTiming returns the hardware check timing.
func DefaultTestPatternTiming() TestPatternTiming {
	return TestPatternTiming{
		Settle: 500 * time.Millisecond,
		Step:   5 * time.Millisecond,
	}
}

// RunTestPattern plays the test pattern and blocks until it finishes or ctx is done.
// Ticking is suspended while it runs; settings and key state are restored afterwards
// and ticking resumes if the engine is enabled. MIDI input during the pattern is lost.
func (e *Engine) RunTestPattern(ctx context.Context) error {
	ctx, err := e.beginTest(ctx)
	if err != nil {
		return err
	}
	return e.runTest(ctx)
}

// StartTestPattern starts the test pattern in the background. It fails immediately
// with ErrTestPatternRunning if one is already playing.
func (e *Engine) StartTestPattern(ctx context.Context) error {
	ctx, err := e.beginTest(ctx)
	if err != nil {
		return err
	}
	go func() {
		if err := e.runTest(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("Test pattern failed", "error", err)
		}
	}()
	return nil
}

// CancelTestPattern stops a running test pattern. It reports whether one was running.
func (e *Engine) CancelTestPattern() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.testCancel == nil {
		return false
	}
	e.testCancel()
	return true
}

func (e *Engine) beginTest(ctx context.Context) (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.testing {
		return nil, ErrTestPatternRunning
	}
	e.testing = true
	ctx, cancel := context.WithCancel(ctx)
	e.testCancel = cancel
	e.stopLoop()
	return ctx, nil
}

func (e *Engine) runTest(ctx context.Context) error {
	settings := e.settings.Get()
	snap := e.keys.Snapshot()

	e.logger.Info("Test pattern started")
	e.publishTest("started")

	err := e.playTestPattern(ctx, settings)

	e.keys.Restore(snap)
	if held := heldKeys(&snap); held > 0 {
		e.logger.Info("Restored keys held before the test pattern; they stay lit until struck again", "held", held)
	}
	if e.settings.Get() != settings {
		if rerr := e.settings.Replace(settings); rerr != nil {
			e.logger.Warn("Failed to restore settings after test pattern", "error", rerr)
		}
	}

	e.mu.Lock()
	if e.testCancel != nil {
		e.testCancel()
	}
	e.testing = false
	e.testCancel = nil
	if e.enabled {
		e.startLoop()
	} else {
		e.blank()
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Info("Test pattern cancelled")
		e.publishTest("cancelled")
		return err
	}
	e.logger.Info("Test pattern completed")
	e.publishTest("completed")
	return nil
}

// playTestPattern lights the status range, sweeps blue from the lowest key to the
// highest, then clears the keys in the same order.
func (e *Engine) playTestPattern(ctx context.Context, s effects.Settings) error {
	layout := e.renderer.Layout()
	frame := make(Frame, layout.TotalLEDs)
	Overlay(frame, layout, StatusTesting)

	submit := func() {
		out := frame.Clone()
		applyBrightness(out, s.Preset.Brightness)
		e.sink.Submit(out)
	}

	submit()
	if err := sleepCtx(ctx, e.timing.Settle); err != nil {
		return err
	}

	sweep := func(c color.RGB) error {
		for note := keys.LowestNote; note <= keys.HighestNote; note++ {
			span, ok := layout.Span(note, s.Policy.DoubleLED)
			if !ok {
				continue
			}
			for j := span.Start; j < span.Start+span.Len; j++ {
				if j >= 0 && j < len(frame) && !layout.IsStatus(j) {
					frame[j] = c
				}
			}
			submit()
			if err := sleepCtx(ctx, e.timing.Step); err != nil {
				return err
			}
		}
		return nil
	}

	if err := sweep(color.Blue); err != nil {
		return err
	}
	if err := sleepCtx(ctx, e.timing.Settle); err != nil {
		return err
	}
	return sweep(color.Black)
}

func (e *Engine) publishTest(state string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(events.TestPatternEvent{
		State:     state,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func heldKeys(snap *keys.Snapshot) int {
	n := 0
	for i := range snap.Keys {
		if snap.Keys[i].Phase == keys.Held {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
