// Package hotplug reports kernel device add and remove events so device
// consumers can rescan without waiting for their next poll.
package hotplug

import (
	"bytes"
	"errors"
	"slices"
	"strings"
)

// ErrUnsupported is returned by NewMonitor where kernel uevents are unavailable.
var ErrUnsupported = errors.New("hotplug: not supported on this platform")

// Kernel subsystems of interest.
const (
	SubsystemSound = "sound" // ALSA cards, including USB MIDI
	SubsystemTTY   = "tty"   // USB serial strip controllers
)

// Event is one kernel uevent.
type Event struct {
	Action    string // add, remove, change, bind, ...
	Subsystem string
	DevName   string // e.g. snd/midiC1D0, ttyACM0
	Env       map[string]string
}

// Plugged reports whether the event is a device arriving or leaving.
func (e Event) Plugged() bool {
	return e.Action == "add" || e.Action == "remove"
}

// Parse decodes a kernel uevent datagram: "action@devpath" then NUL separated
// KEY=VALUE pairs. Datagrams relayed by udevd carry a binary header and are
// rejected.
func Parse(data []byte) (Event, bool) {
	header, rest, _ := bytes.Cut(data, []byte{0})
	action, devpath, ok := strings.Cut(string(header), "@")
	if !ok || action == "" || devpath == "" || strings.ContainsAny(action, "/ ") {
		return Event{}, false
	}

	ev := Event{Action: action, Env: map[string]string{"DEVPATH": devpath}}
	for len(rest) > 0 {
		var field []byte
		field, rest, _ = bytes.Cut(rest, []byte{0})
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
	}
	ev.Subsystem = ev.Env["SUBSYSTEM"]
	ev.DevName = ev.Env["DEVNAME"]
	return ev, true
}

// Filter returns a predicate matching plug events of the given subsystems.
// With no subsystems every plug event matches.
func Filter(subsystems ...string) func(Event) bool {
	return func(e Event) bool {
		if !e.Plugged() {
			return false
		}
		return len(subsystems) == 0 || slices.Contains(subsystems, e.Subsystem)
	}
}
