// Package midi adapts MIDI input (live devices and Standard MIDI Files) to key
// state updates.
package midi

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/smazurov/keylight/internal/metrics"
)

// SustainController is the damper pedal control change number.
const SustainController = 64

// pedalThreshold is the lowest CC64 value that counts as pedal down.
const pedalThreshold = 64

// Handler receives decoded piano events. *keys.Store satisfies it.
type Handler interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
	PedalDown()
	PedalUp()
}

// Dispatch decodes msg and forwards it to h. A note-on with velocity 0 is a
// note-off. Messages other than notes and the sustain pedal are ignored.
func Dispatch(h Handler, msg midi.Message) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		metrics.IncMIDIEvent("note_on")
		h.NoteOn(int(key), int(vel))
	case msg.GetNoteEnd(&ch, &key):
		metrics.IncMIDIEvent("note_off")
		h.NoteOff(int(key))
	case msg.GetControlChange(&ch, &cc, &val) && cc == SustainController:
		metrics.IncMIDIEvent("sustain")
		if val >= pedalThreshold {
			h.PedalDown()
		} else {
			h.PedalUp()
		}
	default:
		metrics.IncMIDIEvent("ignored")
	}
}
