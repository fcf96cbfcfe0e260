// Package led moves rendered frames to LED hardware.
package led

import (
	"errors"

	"github.com/smazurov/keylight/internal/render"
)

// ErrHardwareUnavailable wraps every failure to reach the strip.
var ErrHardwareUnavailable = errors.New("LED hardware unavailable")

// Sink writes complete frames to a strip. Write may block for the duration of
// one transfer; callers go through Output to keep the render loop non-blocking.
type Sink interface {
	Name() string
	Write(frame render.Frame) error
	Close() error
}
