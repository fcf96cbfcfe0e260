package render

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/keys"
)

var (
	white = color.RGB{R: 255, G: 255, B: 255}
	t0    = time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
)

// testClock is a settable clock shared by the key store and the renderer.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestClock() *testClock { return &testClock{now: t0} }

// plainSettings renders white notes at full brightness with no velocity scaling.
func plainSettings() effects.Settings {
	s := effects.Defaults()
	s.Policy.VelocityBrightness = false
	s.Preset.NoteColor = "#ffffff"
	s.Preset.Brightness = 255
	return s
}

func newFixture(t *testing.T) (*Renderer, *keys.Store, *testClock) {
	t.Helper()
	clock := newTestClock()
	return NewRenderer(keys.DefaultLayout(), WithRandSource(rand.NewPCG(1, 2))),
		keys.NewStore(keys.WithClock(clock.Now)), clock
}

func ledFor(t *testing.T, note int) int {
	t.Helper()
	span, ok := keys.DefaultLayout().Span(note, false)
	if !ok {
		t.Fatalf("note %d has no span", note)
	}
	return span.Start
}

func render(r *Renderer, st *keys.Store, s effects.Settings, now time.Time) (Frame, []keys.Expired) {
	snap := st.Snapshot()
	return r.Render(&snap, s, StatusRunning, now)
}

func TestRender_FrameLength(t *testing.T) {
	r, st, clock := newFixture(t)
	frame, _ := render(r, st, plainSettings(), clock.now)
	if len(frame) != keys.DefaultLayout().TotalLEDs {
		t.Errorf("frame length = %d, want %d", len(frame), keys.DefaultLayout().TotalLEDs)
	}
}

func TestRender_HeldKeyLit(t *testing.T) {
	r, st, clock := newFixture(t)
	st.NoteOn(60, 100)

	frame, expired := render(r, st, plainSettings(), clock.now)
	if len(expired) != 0 {
		t.Errorf("held key reported expired: %v", expired)
	}
	if got := frame[ledFor(t, 60)]; got != white {
		t.Errorf("LED for note 60 = %+v, want white", got)
	}
	if got := frame[ledFor(t, 61)]; got != color.Black {
		t.Errorf("LED for note 61 = %+v, want black", got)
	}
}

func TestRender_FadeDecreasesStrictlyThenRetires(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	st.NoteOn(60, 127)
	st.NoteOff(60)

	idx := ledFor(t, 60)
	prev := 256
	for ms := 0; ms < s.Policy.FadeDurationMs; ms += 100 {
		frame, expired := render(r, st, s, t0.Add(time.Duration(ms)*time.Millisecond))
		if len(expired) != 0 {
			t.Fatalf("expired early at %dms", ms)
		}
		v := int(frame[idx].R)
		if v >= prev {
			t.Fatalf("brightness at %dms = %d, not below previous %d", ms, v, prev)
		}
		prev = v
	}

	frame, expired := render(r, st, s, t0.Add(s.Policy.FadeDuration()))
	if frame[idx] != color.Black {
		t.Errorf("LED after fade = %+v, want black", frame[idx])
	}
	if len(expired) != 1 || expired[0].Note != 60 {
		t.Fatalf("expired = %v, want note 60", expired)
	}

	st.Retire(expired)
	if got := st.Snapshot().Key(60).Phase; got != keys.Idle {
		t.Errorf("phase after retire = %v, want Idle", got)
	}
}

func TestRender_SustainWithoutHoldDecaysToThreshold(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	st.PedalDown()
	st.NoteOn(60, 127)
	st.NoteOff(60)

	idx := ledFor(t, 60)
	frame, expired := render(r, st, s, t0)
	if frame[idx] != white {
		t.Errorf("sustained key at start = %+v, want white", frame[idx])
	}

	want := white.Scale(s.Policy.SustainFadeThreshold)
	for _, after := range []time.Duration{s.Policy.FadeDuration(), 10 * time.Second} {
		frame, expired = render(r, st, s, t0.Add(after))
		if frame[idx] != want {
			t.Errorf("sustained key after %v = %+v, want %+v", after, frame[idx], want)
		}
	}
	if len(expired) != 0 {
		t.Errorf("sustained key reported expired")
	}
}

func TestRender_SustainWithHoldStaysFull(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Preset.SustainPedalHold = true
	st.PedalDown()
	st.NoteOn(60, 127)
	st.NoteOff(60)

	frame, _ := render(r, st, s, t0.Add(time.Minute))
	if got := frame[ledFor(t, 60)]; got != white {
		t.Errorf("held sustained key = %+v, want white", got)
	}
}

func TestRender_PedalReleaseFadesFromSustainLevel(t *testing.T) {
	clock := newTestClock()
	r := NewRenderer(keys.DefaultLayout())
	st := keys.NewStore(keys.WithClock(clock.Now))
	s := plainSettings()
	idx := ledFor(t, 64)

	st.PedalDown()
	st.NoteOn(64, 127)
	st.NoteOff(64)
	if got := st.Snapshot().Key(64).Phase; got != keys.Sustained {
		t.Fatalf("phase = %v, want Sustained", got)
	}

	clock.now = t0.Add(s.Policy.FadeDuration())
	st.PedalUp()
	if got := st.Snapshot().Key(64).Phase; got != keys.Releasing {
		t.Fatalf("phase after pedal up = %v, want Releasing", got)
	}

	frame, _ := render(r, st, s, clock.now)
	if want := white.Scale(s.Policy.SustainFadeThreshold); frame[idx] != want {
		t.Errorf("release start = %+v, want sustain level %+v", frame[idx], want)
	}

	frame, _ = render(r, st, s, clock.now.Add(s.Policy.FadeDuration()/2))
	if frame[idx].R >= white.Scale(s.Policy.SustainFadeThreshold).R {
		t.Errorf("release did not decay: %+v", frame[idx])
	}

	_, expired := render(r, st, s, clock.now.Add(s.Policy.FadeDuration()))
	if len(expired) != 1 {
		t.Errorf("expired = %v, want one key", expired)
	}
}

func TestRender_VelocityBrightness(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Policy.VelocityBrightness = true

	st.NoteOn(60, 20)
	st.NoteOn(62, 120)
	st.NoteOn(64, 1)

	frame, _ := render(r, st, s, t0)
	soft, loud := frame[ledFor(t, 60)], frame[ledFor(t, 62)]
	if soft.Luma() >= loud.Luma() {
		t.Errorf("soft %+v not dimmer than loud %+v", soft, loud)
	}
	if got, want := frame[ledFor(t, 64)], white.Scale(velocityFloor); got != want {
		t.Errorf("velocity 1 = %+v, want floor %+v", got, want)
	}
}

func TestRender_StaticMode(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Policy.Mode = effects.ModeStatic
	st.SetFade(s.Policy.Fades())

	st.NoteOn(60, 127)
	st.NoteOff(60)
	if got := st.Snapshot().Key(60).Phase; got != keys.Idle {
		t.Fatalf("static release phase = %v, want Idle", got)
	}

	st.PedalDown()
	st.NoteOn(62, 127)
	st.NoteOff(62)
	frame, _ := render(r, st, s, t0.Add(time.Hour))
	if want := white.Scale(s.Policy.SustainFadeThreshold); frame[ledFor(t, 62)] != want {
		t.Errorf("static sustained = %+v, want %+v", frame[ledFor(t, 62)], want)
	}
	if frame[ledFor(t, 60)] != color.Black {
		t.Errorf("released key still lit: %+v", frame[ledFor(t, 60)])
	}
}

func TestRender_StaticModeRetiresLeftoverReleasingKeys(t *testing.T) {
	r, st, _ := newFixture(t)
	st.NoteOn(60, 127)
	st.NoteOff(60)

	s := plainSettings()
	s.Policy.Mode = effects.ModeStatic
	frame, expired := render(r, st, s, t0)
	if frame[ledFor(t, 60)] != color.Black {
		t.Errorf("releasing key lit under static: %+v", frame[ledFor(t, 60)])
	}
	if len(expired) != 1 {
		t.Errorf("expired = %v, want one key", expired)
	}
}

func TestRender_SparkleStaysBounded(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Policy.Mode = effects.ModeSparkle
	s.Policy.SparkleIntensity = 0.5
	st.NoteOn(60, 127)

	idx := ledFor(t, 60)
	low := white.Scale(1 - s.Policy.SparkleIntensity/2).R
	seen := make(map[uint8]bool)
	for i := 0; i < 50; i++ {
		frame, _ := render(r, st, s, t0.Add(time.Duration(i)*DefaultInterval))
		v := frame[idx].R
		if v < low {
			t.Fatalf("sparkle value %d below %d", v, low)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Error("sparkle produced no variation")
	}
}

func TestRender_SparkleIsDeterministicWithSeed(t *testing.T) {
	s := plainSettings()
	s.Policy.Mode = effects.ModeSparkle
	s.Policy.SparkleIntensity = 1

	run := func() []color.RGB {
		r := NewRenderer(keys.DefaultLayout(), WithRandSource(rand.NewPCG(7, 7)))
		st := keys.NewStore()
		st.NoteOn(60, 127)
		var out []color.RGB
		for i := 0; i < 10; i++ {
			frame, _ := render(r, st, s, t0)
			out = append(out, frame[ledFor(t, 60)])
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("frame %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRender_DoubleModeLightsBothLEDs(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Policy.DoubleLED = true
	st.NoteOn(21, 127)

	frame, _ := render(r, st, s, t0)
	span, ok := keys.DefaultLayout().Span(21, true)
	if !ok || span.Len != 2 {
		t.Fatalf("span = %+v, %v", span, ok)
	}
	lit := 0
	for i, c := range frame {
		if keys.DefaultLayout().IsStatus(i) {
			continue
		}
		if c != color.Black {
			lit++
			if i != span.Start && i != span.Start+1 {
				t.Errorf("unexpected lit LED %d", i)
			}
		}
	}
	if lit != 2 || frame[span.Start] != frame[span.Start+1] {
		t.Errorf("double span not lit identically: lit=%d %+v %+v", lit, frame[span.Start], frame[span.Start+1])
	}
}

func TestRender_StatusOverlay(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Preset.BackgroundColor = "#202020"
	s.Preset.BackgroundBrightness = 255
	layout := keys.DefaultLayout()

	tests := []struct {
		status Status
		want   color.RGB
	}{
		{StatusRunning, color.RGB{G: 50}},
		{StatusTesting, color.RGB{G: 50}},
		{StatusDegraded, color.RGB{R: 50}},
		{StatusOff, color.Black},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			snap := st.Snapshot()
			frame, _ := r.Render(&snap, s, tt.status, t0)
			for i := 0; i < layout.StatusLEDs; i++ {
				if frame[i] != tt.want {
					t.Errorf("status LED %d = %+v, want %+v", i, frame[i], tt.want)
				}
			}
			if frame[layout.StatusLEDs] != (color.RGB{R: 0x20, G: 0x20, B: 0x20}) {
				t.Errorf("first non-status LED = %+v, want background", frame[layout.StatusLEDs])
			}
		})
	}
}

func TestRender_GlobalBrightness(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Preset.Brightness = 128
	st.NoteOn(60, 127)

	frame, _ := render(r, st, s, t0)
	if got, want := frame[ledFor(t, 60)], white.Dim(128); got != want {
		t.Errorf("dimmed key = %+v, want %+v", got, want)
	}
	if got, want := frame[0], (color.RGB{G: 50}).Dim(128); got != want {
		t.Errorf("dimmed status = %+v, want %+v", got, want)
	}

	s.Preset.Brightness = 0
	frame, _ = render(r, st, s, t0)
	for i, c := range frame {
		if c != color.Black {
			t.Fatalf("LED %d lit at brightness 0: %+v", i, c)
		}
	}
}

func TestRender_BackgroundBlend(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Preset.NoteColor = "#ff0000"
	s.Preset.BackgroundColor = "#0000ff"
	s.Preset.BackgroundBrightness = 255
	st.NoteOn(60, 127)
	st.NoteOff(60)

	frame, _ := render(r, st, s, t0)
	if got := frame[ledFor(t, 60)]; got != (color.RGB{R: 255}) {
		t.Errorf("release start = %+v, want note color", got)
	}
	if got := frame[ledFor(t, 70)]; got != (color.RGB{B: 255}) {
		t.Errorf("idle key = %+v, want background", got)
	}

	frame, _ = render(r, st, s, t0.Add(s.Policy.FadeDuration()/2))
	mid := frame[ledFor(t, 60)]
	if mid.R == 0 || mid.B == 0 {
		t.Errorf("mid-fade = %+v, want a mix of note and background", mid)
	}
}

func TestRender_BackgroundColorAloneIsVisible(t *testing.T) {
	r, st, _ := newFixture(t)
	s := effects.Defaults()
	s.Preset.BackgroundColor = "#00ff00"

	frame, _ := render(r, st, s, t0)
	if got := frame[ledFor(t, 70)]; got.G == 0 || got.R != 0 || got.B != 0 {
		t.Errorf("idle key = %+v, want dimmed green background", got)
	}
}

func TestRender_RainbowHue(t *testing.T) {
	r, st, _ := newFixture(t)
	s := plainSettings()
	s.Preset.NoteColor = effects.NoteColorRainbow
	st.NoteOn(21, 127)
	st.NoteOn(60, 127)

	frame, _ := render(r, st, s, t0)
	if got := frame[ledFor(t, 21)]; got != (color.RGB{R: 255}) {
		t.Errorf("lowest key = %+v, want red", got)
	}
	if got, want := frame[ledFor(t, 60)], NoteHue(60); got != want {
		t.Errorf("note 60 = %+v, want %+v", got, want)
	}
}
