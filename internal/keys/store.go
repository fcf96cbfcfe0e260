package keys

import (
	"sync"
	"time"
)

// Phase is a key's animation state.
type Phase uint8

// Key phases.
const (
	Idle Phase = iota
	Held
	Sustained
	Releasing
)

func (p Phase) String() string {
	switch p {
	case Held:
		return "held"
	case Sustained:
		return "sustained"
	case Releasing:
		return "releasing"
	default:
		return "idle"
	}
}

// State is the runtime state of one key. Velocity is meaningful only when
// Phase != Idle.
type State struct {
	Phase            Phase
	Velocity         uint8
	SustainStartedAt time.Time
	ReleaseStartedAt time.Time
}

// Snapshot is an immutable copy of every key plus the pedal.
type Snapshot struct {
	Keys  [KeyCount]State
	Pedal bool
}

// Key returns the state of note, or the zero State when note is out of range.
func (s Snapshot) Key(note int) State {
	if !InRange(note) {
		return State{}
	}
	return s.Keys[note-LowestNote]
}

// Active returns the number of keys that are not Idle.
func (s Snapshot) Active() int {
	n := 0
	for i := range s.Keys {
		if s.Keys[i].Phase != Idle {
			n++
		}
	}
	return n
}

// Expired identifies a Releasing key whose fade has finished. ReleaseStartedAt guards
// against retiring a key that was struck and released again in the meantime.
type Expired struct {
	Note             int
	ReleaseStartedAt time.Time
}

// Store is the single source of truth for what each key is doing. Writers come from
// the MIDI callback goroutine; the renderer reads through Snapshot.
type Store struct {
	mu    sync.Mutex
	snap  Snapshot
	fade  bool
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore returns a store with every key Idle, the pedal up and fading enabled.
func NewStore(opts ...Option) *Store {
	s := &Store{
		fade:  true,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFade controls whether released keys go through Releasing or straight to Idle.
func (s *Store) SetFade(enabled bool) {
	s.mu.Lock()
	s.fade = enabled
	s.mu.Unlock()
}

// NoteOn marks note Held. Notes outside the piano range are ignored.
func (s *Store) NoteOn(note, velocity int) {
	if !InRange(note) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Keys[note-LowestNote] = State{
		Phase:    Held,
		Velocity: clampVelocity(velocity),
	}
}

// NoteOff releases note. With the pedal down the key is Sustained, otherwise it starts
// Releasing (or goes Idle when fading is off).
func (s *Store) NoteOff(note int) {
	if !InRange(note) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := &s.snap.Keys[note-LowestNote]
	if k.Phase != Held {
		return
	}
	now := s.clock()
	if s.snap.Pedal {
		k.Phase = Sustained
		k.SustainStartedAt = now
		return
	}
	s.release(k, now)
}

// PedalDown sets the sustain pedal.
func (s *Store) PedalDown() {
	s.mu.Lock()
	s.snap.Pedal = true
	s.mu.Unlock()
}

// PedalUp lifts the sustain pedal and releases every Sustained key. Held keys stay Held.
func (s *Store) PedalUp() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snap.Pedal {
		return
	}
	s.snap.Pedal = false
	now := s.clock()
	for i := range s.snap.Keys {
		if s.snap.Keys[i].Phase == Sustained {
			s.release(&s.snap.Keys[i], now)
		}
	}
}

// ReleaseAll lifts the pedal and releases every Held or Sustained key. Used when the
// MIDI source disappears and no note-off will ever arrive.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Pedal = false
	now := s.clock()
	for i := range s.snap.Keys {
		switch s.snap.Keys[i].Phase {
		case Held, Sustained:
			s.release(&s.snap.Keys[i], now)
		}
	}
}

// Snapshot returns a copy of all key states.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Restore replaces the whole state with snap.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Retire moves finished Releasing keys to Idle. Keys that changed since the renderer
// saw them are left alone.
func (s *Store) Retire(expired []Expired) {
	if len(expired) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range expired {
		if !InRange(e.Note) {
			continue
		}
		k := &s.snap.Keys[e.Note-LowestNote]
		if k.Phase == Releasing && k.ReleaseStartedAt.Equal(e.ReleaseStartedAt) {
			*k = State{}
		}
	}
}

// release must be called with mu held.
func (s *Store) release(k *State, now time.Time) {
	if !s.fade {
		*k = State{}
		return
	}
	k.Phase = Releasing
	k.ReleaseStartedAt = now
}

func clampVelocity(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	default:
		return uint8(v)
	}
}
