// Package render turns key state and effect settings into LED frames on a fixed
// schedule.
package render

import (
	"math/rand/v2"
	"time"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/keys"
)

// velocityFloor keeps the softest notes visible when brightness follows velocity.
const velocityFloor = 0.1

// Frame is one RGB value per LED, index 0 first.
type Frame []color.RGB

// Clone returns a copy of f.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// Renderer computes frames. It is not safe for concurrent use; the engine owns it.
type Renderer struct {
	layout keys.Layout
	rng    *rand.Rand
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRandSource seeds sparkle jitter from src.
func WithRandSource(src rand.Source) RendererOption {
	return func(r *Renderer) {
		r.rng = rand.New(src)
	}
}

// NewRenderer creates a renderer for layout.
func NewRenderer(layout keys.Layout, opts ...RendererOption) *Renderer {
	r := &Renderer{
		layout: layout,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout returns the strip layout.
func (r *Renderer) Layout() keys.Layout {
	return r.layout
}

// Render produces the frame for now. Releasing keys whose fade has completed are
// returned so the caller can retire them in the key store.
func (r *Renderer) Render(snap *keys.Snapshot, s effects.Settings, status Status, now time.Time) (Frame, []keys.Expired) {
	frame := make(Frame, r.layout.TotalLEDs)

	bg, hasBG := s.Preset.BackgroundRGB()
	if hasBG {
		bg = bg.Dim(uint8(s.Preset.BackgroundBrightness))
		for i := r.layout.StatusLEDs; i < len(frame); i++ {
			frame[i] = bg
		}
	}

	noteRGB, fixed := s.Preset.NoteRGB()
	var expired []keys.Expired

	for i := range snap.Keys {
		k := snap.Keys[i]
		if k.Phase == keys.Idle {
			continue
		}
		note := keys.LowestNote + i

		lvl, done := r.level(k, s, now)
		if done {
			expired = append(expired, keys.Expired{Note: note, ReleaseStartedAt: k.ReleaseStartedAt})
		}

		base := noteRGB
		if !fixed {
			base = NoteHue(note)
		}
		c := blend(bg, base, lvl)

		span, ok := r.layout.Span(note, s.Policy.DoubleLED)
		if !ok {
			continue
		}
		for j := span.Start; j < span.Start+span.Len; j++ {
			if j >= 0 && j < len(frame) && !r.layout.IsStatus(j) {
				frame[j] = c
			}
		}
	}

	Overlay(frame, r.layout, status)
	applyBrightness(frame, s.Preset.Brightness)
	return frame, expired
}

// applyBrightness scales every LED by level/255.
func applyBrightness(frame Frame, level int) {
	if level >= 255 {
		return
	}
	for i := range frame {
		frame[i] = frame[i].Dim(uint8(max(level, 0)))
	}
}

// level returns the brightness scalar for a non-Idle key and whether a Releasing
// key has finished fading.
func (r *Renderer) level(k keys.State, s effects.Settings, now time.Time) (float64, bool) {
	p := s.Policy
	fade := p.FadeDuration()
	hold := s.Preset.SustainPedalHold

	base := 1.0
	if p.VelocityBrightness {
		base = max(float64(k.Velocity)/127, velocityFloor)
	}

	var phase float64
	switch k.Phase {
	case keys.Held:
		phase = 1
	case keys.Sustained:
		switch {
		case hold:
			phase = 1
		case p.Mode == effects.ModeStatic:
			phase = p.SustainFadeThreshold
		default:
			phase = decay(1, p.SustainFadeThreshold, now.Sub(k.SustainStartedAt), fade)
		}
	case keys.Releasing:
		if p.Mode == effects.ModeStatic {
			return 0, true
		}
		start := 1.0
		if !k.SustainStartedAt.IsZero() && !hold {
			start = decay(1, p.SustainFadeThreshold, k.ReleaseStartedAt.Sub(k.SustainStartedAt), fade)
		}
		elapsed := now.Sub(k.ReleaseStartedAt)
		if elapsed >= fade {
			return 0, true
		}
		phase = decay(start, 0, elapsed, fade)
	}

	lvl := base * phase
	if p.Mode == effects.ModeSparkle && p.SparkleIntensity > 0 &&
		(k.Phase == keys.Held || k.Phase == keys.Sustained) {
		lvl += (r.rng.Float64() - 0.5) * p.SparkleIntensity
	}
	return min(max(lvl, 0), 1), false
}

// decay interpolates linearly from `from` to `to` over d.
func decay(from, to float64, elapsed, d time.Duration) float64 {
	if elapsed <= 0 || d <= 0 {
		if d <= 0 {
			return to
		}
		return from
	}
	if elapsed >= d {
		return to
	}
	t := float64(elapsed) / float64(d)
	return from + (to-from)*t
}

// blend mixes from bg toward c by lvl.
func blend(bg, c color.RGB, lvl float64) color.RGB {
	if bg == (color.RGB{}) {
		return c.Scale(lvl)
	}
	mix := func(a, b uint8) uint8 {
		v := float64(a) + (float64(b)-float64(a))*lvl
		return uint8(v + 0.5)
	}
	return color.RGB{R: mix(bg.R, c.R), G: mix(bg.G, c.G), B: mix(bg.B, c.B)}
}

// NoteHue is the default color of a key: the 88 keys spread once around the hue wheel.
func NoteHue(note int) color.RGB {
	return color.Rainbow(float64(note-keys.LowestNote) / keys.KeyCount)
}
