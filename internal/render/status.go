package render

import (
	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/keys"
)

// Status is what the status LEDs report.
type Status int

// Status values.
const (
	StatusOff Status = iota
	StatusRunning
	StatusDegraded
	StatusTesting
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDegraded:
		return "degraded"
	case StatusTesting:
		return "testing"
	default:
		return "off"
	}
}

// StatusColor maps a status to the color of the status range.
func StatusColor(s Status) color.RGB {
	switch s {
	case StatusRunning, StatusTesting:
		return color.RGB{G: 50}
	case StatusDegraded:
		return color.RGB{R: 50}
	default:
		return color.Black
	}
}

// Overlay paints the status range of frame.
func Overlay(frame Frame, layout keys.Layout, s Status) {
	c := StatusColor(s)
	for i := 0; i < layout.StatusLEDs && i < len(frame); i++ {
		frame[i] = c
	}
}
