package midi

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/smazurov/keylight/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// recorder implements Target and records calls as strings.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) NoteOn(note, velocity int) { r.add(fmt.Sprintf("on %d %d", note, velocity)) }
func (r *recorder) NoteOff(note int)          { r.add(fmt.Sprintf("off %d", note)) }
func (r *recorder) PedalDown()                { r.add("pedal down") }
func (r *recorder) PedalUp()                  { r.add("pedal up") }
func (r *recorder) ReleaseAll()               { r.add("release all") }

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeDriver serves a mutable list of inputs.
type fakeDriver struct {
	mu       sync.Mutex
	inputs   []string
	ports    map[string]*fakePort
	failOpen bool
}

func newFakeDriver(inputs ...string) *fakeDriver {
	return &fakeDriver{inputs: inputs, ports: make(map[string]*fakePort)}
}

func (d *fakeDriver) setInputs(inputs ...string) {
	d.mu.Lock()
	d.inputs = inputs
	d.mu.Unlock()
}

func (d *fakeDriver) Inputs() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.inputs...), nil
}

func (d *fakeDriver) Open(name string) (Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOpen {
		return nil, errors.New("device busy")
	}
	p := &fakePort{name: name}
	d.ports[name] = p
	return p, nil
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) port(name string) *fakePort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ports[name]
}

type fakePort struct {
	name string

	mu      sync.Mutex
	onMsg   func(midi.Message)
	onErr   func(error)
	stopped bool
	closed  bool
}

func (p *fakePort) Listen(onMsg func(midi.Message), onErr func(error)) (func(), error) {
	p.mu.Lock()
	p.onMsg, p.onErr = onMsg, onErr
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
	}, nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) send(msg midi.Message) {
	p.mu.Lock()
	fn := p.onMsg
	p.mu.Unlock()
	fn(msg)
}

func (p *fakePort) fail(err error) {
	p.mu.Lock()
	fn := p.onErr
	p.mu.Unlock()
	fn(err)
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed && p.stopped
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.MIDIDeviceEvent
}

func (m *mockPublisher) Publish(ev events.Event) {
	if e, ok := ev.(events.MIDIDeviceEvent); ok {
		m.mu.Lock()
		m.events = append(m.events, e)
		m.mu.Unlock()
	}
}

func (m *mockPublisher) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Action+" "+e.Device)
	}
	return out
}
