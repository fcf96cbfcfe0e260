// Package color provides the 8-bit RGB type shared by presets, the renderer and the
// LED sinks.
package color

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is one LED's color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Common colors.
var (
	Black = RGB{}
	Blue  = RGB{B: 255}
)

// Parse accepts "#rrggbb" or "rrggbb".
func Parse(s string) (RGB, error) {
	hex := strings.TrimSpace(s)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) != 7 {
		return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// Hex formats c as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Scale multiplies every channel by f, clamped to [0,1].
func (c RGB) Scale(f float64) RGB {
	switch {
	case f <= 0:
		return Black
	case f >= 1:
		return c
	}
	return RGB{R: scale8(c.R, f), G: scale8(c.G, f), B: scale8(c.B, f)}
}

// Dim scales c by level/255.
func (c RGB) Dim(level uint8) RGB {
	if level == 255 {
		return c
	}
	return RGB{
		R: uint8(uint16(c.R) * uint16(level) / 255),
		G: uint8(uint16(c.G) * uint16(level) / 255),
		B: uint8(uint16(c.B) * uint16(level) / 255),
	}
}

// Luma is the channel sum, used to compare brightness of the same hue.
func (c RGB) Luma() int {
	return int(c.R) + int(c.G) + int(c.B)
}

// Rainbow returns a fully saturated hue for pos in [0,1), red at 0.
func Rainbow(pos float64) RGB {
	pos -= math.Floor(pos)
	r, g, b := colorful.Hsv(pos*360, 1, 1).Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

func scale8(v uint8, f float64) uint8 {
	return uint8(math.Round(float64(v) * f))
}
