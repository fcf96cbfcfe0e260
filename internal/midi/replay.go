package midi

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// timedMessage is a message at an absolute file time.
type timedMessage struct {
	at  time.Duration
	msg midi.Message
}

// Replay plays a Standard MIDI File into h in real time, scaled by speed
// (2 plays twice as fast). It returns when the file ends or ctx is done.
func Replay(ctx context.Context, r io.Reader, h Handler, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("invalid replay speed %v", speed)
	}
	s, err := smf.ReadFrom(r)
	if err != nil {
		return fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	msgs := schedule(s)
	start := time.Now()
	for _, m := range msgs {
		due := time.Duration(float64(m.at) / speed)
		if wait := due - time.Since(start); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		Dispatch(h, m.msg)
	}
	return nil
}

// ReplayFile opens path and replays it.
func ReplayFile(ctx context.Context, path string, h Handler, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Replay(ctx, f, h, speed)
}

// schedule merges the note and controller messages of every track in time order.
func schedule(s *smf.SMF) []timedMessage {
	type tracked struct {
		ticks int64
		timedMessage
	}
	var all []tracked
	for _, track := range s.Tracks {
		var absTicks int64
		for _, ev := range track {
			absTicks += int64(ev.Delta)
			msg := midi.Message(ev.Message)
			t := msg.Type()
			if !t.Is(midi.NoteOnMsg) && !t.Is(midi.NoteOffMsg) && !t.Is(midi.ControlChangeMsg) {
				continue
			}
			all = append(all, tracked{
				ticks: absTicks,
				timedMessage: timedMessage{
					at:  time.Duration(s.TimeAt(absTicks)) * time.Microsecond,
					msg: msg,
				},
			})
		}
	}
	slices.SortStableFunc(all, func(a, b tracked) int {
		switch {
		case a.ticks < b.ticks:
			return -1
		case a.ticks > b.ticks:
			return 1
		default:
			return 0
		}
	})

	out := make([]timedMessage, len(all))
	for i, t := range all {
		out[i] = t.timedMessage
	}
	return out
}
