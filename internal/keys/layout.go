// Package keys holds the per-key runtime state of the piano and the mapping from
// MIDI notes to LED indices on the strip.
package keys

import "fmt"

const (
	// LowestNote is MIDI A0.
	LowestNote = 21
	// HighestNote is MIDI C8.
	HighestNote = 108
	// KeyCount is the number of playable keys.
	KeyCount = HighestNote - LowestNote + 1
)

// Layout describes how the strip is partitioned. The status range is [0, StatusLEDs)
// and the key range is the last KeyLEDs indices of the strip.
type Layout struct {
	TotalLEDs  int `toml:"total_leds" json:"total_leds"`
	StatusLEDs int `toml:"status_leds" json:"status_leds"`
	KeyLEDs    int `toml:"key_leds" json:"key_leds"`
}

// DefaultLayout is a 144 LED strip with five status LEDs and 88 key LEDs.
func DefaultLayout() Layout {
	return Layout{TotalLEDs: 144, StatusLEDs: 5, KeyLEDs: KeyCount}
}

// Span is a run of adjacent LED indices starting at Start.
type Span struct {
	Start int
	Len   int
}

// Validate reports whether the layout can hold the status range and 88 keys.
func (l Layout) Validate() error {
	switch {
	case l.TotalLEDs <= 0:
		return fmt.Errorf("total LEDs must be positive, got %d", l.TotalLEDs)
	case l.StatusLEDs < 0:
		return fmt.Errorf("status LEDs must not be negative, got %d", l.StatusLEDs)
	case l.KeyLEDs < KeyCount:
		return fmt.Errorf("key range needs at least %d LEDs, got %d", KeyCount, l.KeyLEDs)
	case l.StatusLEDs+l.KeyLEDs > l.TotalLEDs:
		return fmt.Errorf("status (%d) and key (%d) ranges exceed strip length %d",
			l.StatusLEDs, l.KeyLEDs, l.TotalLEDs)
	}
	return nil
}

// InRange reports whether note is one of the 88 playable keys.
func InRange(note int) bool {
	return note >= LowestNote && note <= HighestNote
}

// Pairs is the number of LED pairs available in double mode.
func (l Layout) Pairs() int {
	return l.KeyLEDs / 2
}

// IsStatus reports whether index belongs to the status range.
func (l Layout) IsStatus(index int) bool {
	return index >= 0 && index < l.StatusLEDs
}

// Span returns the LEDs lit for note. Single mode counts down from the last LED of the
// strip, one LED per key. Double mode spreads the 88 keys over the pairs of the key
// range; neighbouring keys share a pair when there are fewer pairs than keys.
func (l Layout) Span(note int, double bool) (Span, bool) {
	if !InRange(note) {
		return Span{}, false
	}
	offset := note - LowestNote
	top := l.TotalLEDs - 1

	if !double {
		return Span{Start: top - offset, Len: 1}, true
	}

	pairs := l.Pairs()
	if pairs == 0 {
		return Span{}, false
	}
	pair := offset * pairs / KeyCount
	// Pair 0 occupies the two highest indices.
	return Span{Start: top - 2*pair - 1, Len: 2}, true
}
