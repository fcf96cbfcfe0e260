package led

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/render"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// mockSink records frames and can block or fail on demand.
type mockSink struct {
	name string

	mu     sync.Mutex
	frames []render.Frame
	fail   bool
	closed bool

	gate    chan struct{} // when non-nil, Write waits for a receive
	writing chan struct{} // signalled when Write starts
}

func newMockSink(name string) *mockSink {
	return &mockSink{name: name, writing: make(chan struct{}, 16)}
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(frame render.Frame) error {
	select {
	case m.writing <- struct{}{}:
	default:
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.Join(ErrHardwareUnavailable, errors.New("mock failure"))
	}
	m.frames = append(m.frames, frame.Clone())
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) setFail(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

func (m *mockSink) written() []render.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]render.Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.HardwareStatusChangedEvent
}

func (m *mockPublisher) Publish(ev events.Event) {
	if e, ok := ev.(events.HardwareStatusChangedEvent); ok {
		m.mu.Lock()
		m.events = append(m.events, e)
		m.mu.Unlock()
	}
}

func (m *mockPublisher) get() []events.HardwareStatusChangedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.HardwareStatusChangedEvent, len(m.events))
	copy(out, m.events)
	return out
}
