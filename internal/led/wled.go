package led

import (
	"fmt"
	"net"
	"sync"

	"github.com/smazurov/keylight/internal/render"
)

// wledProtocolDRGB selects the WLED realtime "DRGB" UDP protocol.
const wledProtocolDRGB = 2

// DefaultWLEDTimeout is how many seconds WLED stays in realtime mode after the
// last packet.
const DefaultWLEDTimeout = 2

// wledSink streams frames to a WLED controller over UDP.
type wledSink struct {
	addr    string
	timeout byte

	mu   sync.Mutex
	conn net.Conn
	buf  []byte
}

func newWLED(addr string, timeout int) *wledSink {
	if timeout <= 0 || timeout > 255 {
		timeout = DefaultWLEDTimeout
	}
	return &wledSink{addr: addr, timeout: byte(timeout)}
}

func (w *wledSink) Name() string { return "wled" }

func (w *wledSink) Write(frame render.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, err := net.Dial("udp", w.addr)
		if err != nil {
			return fmt.Errorf("%w: dial %s: %v", ErrHardwareUnavailable, w.addr, err)
		}
		w.conn = conn
	}

	w.buf = append(w.buf[:0], wledProtocolDRGB, w.timeout)
	for _, c := range frame {
		w.buf = append(w.buf, c.R, c.G, c.B)
	}
	if _, err := w.conn.Write(w.buf); err != nil {
		_ = w.conn.Close()
		w.conn = nil
		return fmt.Errorf("%w: send %s: %v", ErrHardwareUnavailable, w.addr, err)
	}
	return nil
}

func (w *wledSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
