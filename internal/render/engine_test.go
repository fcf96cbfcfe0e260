package render

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/keys"
)

// fakeSink records every submitted frame.
type fakeSink struct {
	mu        sync.Mutex
	frames    []Frame
	unhealthy atomic.Bool
	onSubmit  func(n int)
}

func (f *fakeSink) Submit(frame Frame) bool {
	f.mu.Lock()
	f.frames = append(f.frames, frame.Clone())
	n := len(f.frames)
	hook := f.onSubmit
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return true
}

func (f *fakeSink) Healthy() bool { return !f.unhealthy.Load() }

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSink) last() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeSink) all() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *mockPublisher) testStates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.events {
		if tp, ok := ev.(events.TestPatternEvent); ok {
			out = append(out, tp.State)
		}
	}
	return out
}

func (m *mockPublisher) rendererStates() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bool
	for _, ev := range m.events {
		if rs, ok := ev.(events.RendererStateChangedEvent); ok {
			out = append(out, rs.Enabled)
		}
	}
	return out
}

type engineFixture struct {
	engine *Engine
	sink   *fakeSink
	keys   *keys.Store
	live   *effects.Live
	bus    *mockPublisher
	clock  *testClock
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		sink:  &fakeSink{},
		live:  effects.NewLive(plainSettings(), nil),
		bus:   &mockPublisher{},
		clock: newTestClock(),
	}
	f.keys = keys.NewStore(keys.WithClock(f.clock.Now))
	base := []EngineOption{
		WithEventBus(f.bus),
		WithEngineClock(f.clock.Now),
		WithTestPatternTiming(TestPatternTiming{}),
	}
	f.engine = NewEngine(NewRenderer(keys.DefaultLayout()), f.live, f.keys, f.sink, append(base, opts...)...)
	t.Cleanup(f.engine.Stop)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func isBlank(frame Frame) bool {
	for _, c := range frame {
		if c != color.Black {
			return false
		}
	}
	return true
}

func TestEngine_TickRendersAndRetires(t *testing.T) {
	f := newEngineFixture(t)
	f.keys.NoteOn(60, 127)
	f.keys.NoteOff(60)

	f.engine.tick()
	if got := f.sink.last()[ledFor(t, 60)]; got != white {
		t.Errorf("release start = %+v, want white", got)
	}
	if got := f.sink.last()[0]; got != (color.RGB{G: 50}) {
		t.Errorf("status LED = %+v, want green", got)
	}

	f.clock.now = t0.Add(f.live.Get().Policy.FadeDuration())
	f.engine.tick()
	if got := f.sink.last()[ledFor(t, 60)]; got != color.Black {
		t.Errorf("after fade = %+v, want black", got)
	}
	if got := f.keys.Snapshot().Key(60).Phase; got != keys.Idle {
		t.Errorf("phase = %v, want Idle", got)
	}
}

func TestEngine_StatusReflectsSinkHealthAndToggle(t *testing.T) {
	f := newEngineFixture(t)

	f.sink.unhealthy.Store(true)
	f.engine.tick()
	if got := f.sink.last()[0]; got != (color.RGB{R: 50}) {
		t.Errorf("degraded status LED = %+v, want red", got)
	}
	if got := f.engine.State().Status; got != StatusDegraded {
		t.Errorf("State().Status = %v, want degraded", got)
	}

	if on := f.engine.ToggleStatusIndicators(); on {
		t.Fatal("toggle from on returned on")
	}
	f.engine.tick()
	if got := f.sink.last()[0]; got != color.Black {
		t.Errorf("status LED with indicators off = %+v, want black", got)
	}

	if on := f.engine.ToggleStatusIndicators(); !on {
		t.Fatal("toggle from off returned off")
	}
	f.sink.unhealthy.Store(false)
	f.engine.tick()
	if got := f.sink.last()[0]; got != (color.RGB{G: 50}) {
		t.Errorf("status LED = %+v, want green", got)
	}
}

func TestEngine_StartStopRestartKeepsKeyState(t *testing.T) {
	f := newEngineFixture(t, WithInterval(2*time.Millisecond))
	f.keys.NoteOn(60, 127)

	f.engine.Start()
	if !f.engine.Enabled() {
		t.Fatal("engine not enabled after Start")
	}
	waitFor(t, "frames", func() bool { return f.sink.count() >= 3 })

	f.engine.Stop()
	if f.engine.Enabled() {
		t.Fatal("engine enabled after Stop")
	}
	if !isBlank(f.sink.last()) {
		t.Error("last frame after Stop is not blank")
	}
	if got := f.keys.Snapshot().Key(60).Phase; got != keys.Held {
		t.Errorf("key phase after Stop = %v, want Held", got)
	}

	stopped := f.sink.count()
	time.Sleep(10 * time.Millisecond)
	if f.sink.count() != stopped {
		t.Error("frames submitted while stopped")
	}

	f.engine.Start()
	waitFor(t, "frames after restart", func() bool { return f.sink.count() >= stopped+2 })
	if got := f.sink.last()[ledFor(t, 60)]; got != white {
		t.Errorf("key after restart = %+v, want white", got)
	}
	f.engine.Stop()

	got := f.bus.rendererStates()
	want := []bool{true, false, true, false}
	if len(got) != len(want) {
		t.Fatalf("renderer events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("renderer event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	f := newEngineFixture(t, WithInterval(time.Hour))
	f.engine.Start()
	f.engine.Start()
	f.engine.Stop()
	f.engine.Stop()

	if got := f.bus.rendererStates(); len(got) != 2 {
		t.Errorf("renderer events = %v, want one start and one stop", got)
	}
}

func TestTestPattern_Sequence(t *testing.T) {
	f := newEngineFixture(t)
	f.keys.NoteOn(60, 127)
	layout := keys.DefaultLayout()
	keyLow := layout.TotalLEDs - layout.KeyLEDs

	if err := f.engine.RunTestPattern(context.Background()); err != nil {
		t.Fatalf("RunTestPattern failed: %v", err)
	}

	frames := f.sink.all()
	// status frame, 88 blue steps, 88 clear steps, final blank
	if len(frames) != 1+2*keys.KeyCount+1 {
		t.Fatalf("frames = %d, want %d", len(frames), 2+2*keys.KeyCount)
	}

	first := frames[0]
	for i := 0; i < layout.StatusLEDs; i++ {
		if first[i] != (color.RGB{G: 50}) {
			t.Errorf("status LED %d = %+v, want green", i, first[i])
		}
	}
	for i := layout.StatusLEDs; i < layout.TotalLEDs; i++ {
		if first[i] != color.Black {
			t.Fatalf("LED %d lit in first frame: %+v", i, first[i])
		}
	}

	if frames[1][ledFor(t, 21)] != color.Blue || frames[1][ledFor(t, 22)] != color.Black {
		t.Error("blue sweep does not start at the lowest key")
	}

	fullBlue := frames[keys.KeyCount]
	for i := keyLow; i < layout.TotalLEDs; i++ {
		if fullBlue[i] != color.Blue {
			t.Fatalf("LED %d = %+v after blue sweep, want blue", i, fullBlue[i])
		}
	}

	cleared := frames[2*keys.KeyCount]
	for i := keyLow; i < layout.TotalLEDs; i++ {
		if cleared[i] != color.Black {
			t.Fatalf("LED %d = %+v after clear sweep, want black", i, cleared[i])
		}
	}
	if cleared[0] != (color.RGB{G: 50}) {
		t.Error("status range not lit through the clear sweep")
	}

	if !isBlank(frames[len(frames)-1]) {
		t.Error("disabled engine did not blank the strip after the pattern")
	}
	if got := f.keys.Snapshot().Key(60).Phase; got != keys.Held {
		t.Errorf("key state not restored: %v", got)
	}
	if got := f.bus.testStates(); len(got) != 2 || got[0] != "started" || got[1] != "completed" {
		t.Errorf("test pattern events = %v", got)
	}
}

func TestTestPattern_DiscardsInputAndRestoresSettings(t *testing.T) {
	f := newEngineFixture(t)
	f.keys.NoteOn(60, 127)
	before := f.live.Get()

	f.sink.onSubmit = func(n int) {
		if n != 5 {
			return
		}
		f.keys.NoteOn(70, 100)
		f.keys.NoteOff(60)
		changed := before
		changed.Preset.Brightness = 3
		if err := f.live.Replace(changed); err != nil {
			t.Error(err)
		}
	}

	if err := f.engine.RunTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.keys.Snapshot()
	if snap.Key(60).Phase != keys.Held || snap.Key(70).Phase != keys.Idle {
		t.Errorf("key state after pattern: 60=%v 70=%v", snap.Key(60).Phase, snap.Key(70).Phase)
	}
	if f.live.Get() != before {
		t.Errorf("settings after pattern = %+v, want %+v", f.live.Get(), before)
	}
}

func TestTestPattern_RestoresMidFadeKeys(t *testing.T) {
	f := newEngineFixture(t)

	f.keys.NoteOn(60, 127)
	f.keys.NoteOn(62, 90)
	f.keys.NoteOff(62)
	f.clock.now = t0.Add(100 * time.Millisecond)
	f.keys.PedalDown()
	f.keys.NoteOn(64, 80)
	f.clock.now = t0.Add(200 * time.Millisecond)
	f.keys.NoteOff(64)
	f.clock.now = t0.Add(300 * time.Millisecond)

	before := f.keys.Snapshot()
	if before.Key(62).Phase != keys.Releasing || before.Key(64).Phase != keys.Sustained || !before.Pedal {
		t.Fatalf("unexpected starting state: 62=%v 64=%v pedal=%v",
			before.Key(62).Phase, before.Key(64).Phase, before.Pedal)
	}

	f.sink.onSubmit = func(n int) {
		if n != 3 {
			return
		}
		f.clock.now = t0.Add(time.Second)
		f.keys.NoteOff(60)
		f.keys.PedalUp()
		f.keys.NoteOn(62, 10)
		f.keys.NoteOn(70, 100)
	}

	if err := f.engine.RunTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}

	after := f.keys.Snapshot()
	if after != before {
		t.Errorf("key state after pattern differs from the state before it")
	}
	if got := after.Key(62); got.Phase != keys.Releasing || !got.ReleaseStartedAt.Equal(t0) {
		t.Errorf("releasing key = %+v, want Releasing since %v", got, t0)
	}
	if got := after.Key(64); got.Phase != keys.Sustained || !got.SustainStartedAt.Equal(t0.Add(200*time.Millisecond)) {
		t.Errorf("sustained key = %+v", got)
	}
	if !after.Pedal {
		t.Error("pedal not restored")
	}
}

func TestTestPattern_LogsRestoredHeldKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	f := newEngineFixture(t, WithLogger(logger))
	f.keys.NoteOn(60, 127)
	f.keys.NoteOn(64, 127)

	if err := f.engine.RunTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "stay lit until struck again") || !strings.Contains(out, "held=2") {
		t.Errorf("log output missing held key notice:\n%s", out)
	}
}

func TestTestPattern_SingleFlightAndCancel(t *testing.T) {
	f := newEngineFixture(t, WithTestPatternTiming(TestPatternTiming{Settle: 10 * time.Second}))
	f.keys.NoteOn(60, 127)

	if err := f.engine.StartTestPattern(context.Background()); err != nil {
		t.Fatalf("StartTestPattern failed: %v", err)
	}
	if !f.engine.State().TestPatternRunning {
		t.Fatal("State does not report the running pattern")
	}
	if err := f.engine.StartTestPattern(context.Background()); !errors.Is(err, ErrTestPatternRunning) {
		t.Errorf("second start error = %v, want ErrTestPatternRunning", err)
	}
	if err := f.engine.RunTestPattern(context.Background()); !errors.Is(err, ErrTestPatternRunning) {
		t.Errorf("run while running error = %v, want ErrTestPatternRunning", err)
	}

	if !f.engine.CancelTestPattern() {
		t.Fatal("CancelTestPattern reported nothing running")
	}
	waitFor(t, "cancelled event", func() bool {
		states := f.bus.testStates()
		return len(states) == 2 && states[1] == "cancelled"
	})
	if f.engine.State().TestPatternRunning {
		t.Error("pattern still running after cancel")
	}
	if f.engine.CancelTestPattern() {
		t.Error("CancelTestPattern reported a pattern after it finished")
	}
	if got := f.keys.Snapshot().Key(60).Phase; got != keys.Held {
		t.Errorf("key state not restored after cancel: %v", got)
	}
}

func TestTestPattern_ContextCancel(t *testing.T) {
	f := newEngineFixture(t, WithTestPatternTiming(TestPatternTiming{Settle: 10 * time.Second}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.engine.RunTestPattern(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RunTestPattern error = %v, want context.Canceled", err)
	}
}

func TestTestPattern_ResumesWhenEnabled(t *testing.T) {
	f := newEngineFixture(t, WithInterval(2*time.Millisecond))
	f.engine.Start()

	if err := f.engine.RunTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := f.engine.State()
	if !st.Enabled || st.TestPatternRunning {
		t.Fatalf("state after pattern = %+v", st)
	}
	n := f.sink.count()
	waitFor(t, "ticks after pattern", func() bool { return f.sink.count() >= n+2 })
}

func TestTestPattern_StopCancels(t *testing.T) {
	f := newEngineFixture(t, WithInterval(2*time.Millisecond),
		WithTestPatternTiming(TestPatternTiming{Settle: 10 * time.Second}))
	f.engine.Start()

	if err := f.engine.StartTestPattern(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.engine.Stop()

	waitFor(t, "cancelled event", func() bool {
		states := f.bus.testStates()
		return len(states) == 2 && states[1] == "cancelled"
	})
	if f.engine.Enabled() {
		t.Error("engine enabled after Stop")
	}
	if !isBlank(f.sink.last()) {
		t.Error("strip not blanked after stopping during the pattern")
	}
}
