package led

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"github.com/smazurov/keylight/internal/render"
)

// DefaultBaudRate matches common Adalight firmware.
const DefaultBaudRate = 115200

type openFunc func(device string, baud int) (io.WriteCloser, error)

func openSerial(device string, baud int) (io.WriteCloser, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// serialSink speaks the Adalight protocol to a microcontroller driving the strip.
// The port is opened lazily and reopened after a failed write.
type serialSink struct {
	device string
	baud   int
	logger *slog.Logger
	open   openFunc

	mu   sync.Mutex
	port io.WriteCloser
	buf  []byte
}

func newSerial(device string, baud int, logger *slog.Logger) *serialSink {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serialSink{
		device: device,
		baud:   baud,
		logger: logger,
		open:   openSerial,
	}
}

func (s *serialSink) Name() string { return "serial" }

func (s *serialSink) Write(frame render.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		port, err := s.open(s.device, s.baud)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrHardwareUnavailable, s.device, err)
		}
		s.logger.Info("Opened serial LED port", "device", s.device, "baud", s.baud)
		s.port = port
	}

	s.buf = encodeAdalight(s.buf[:0], frame)
	if _, err := s.port.Write(s.buf); err != nil {
		_ = s.port.Close()
		s.port = nil
		return fmt.Errorf("%w: write %s: %v", ErrHardwareUnavailable, s.device, err)
	}
	return nil
}

func (s *serialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// encodeAdalight appends an Adalight packet for frame to buf: the magic word "Ada",
// the LED count minus one as big-endian hi/lo, a checksum hi^lo^0x55, then RGB triples.
func encodeAdalight(buf []byte, frame render.Frame) []byte {
	n := len(frame) - 1
	if n < 0 {
		n = 0
	}
	hi, lo := byte(n>>8), byte(n)
	buf = append(buf, 'A', 'd', 'a', hi, lo, hi^lo^0x55)
	for _, c := range frame {
		buf = append(buf, c.R, c.G, c.B)
	}
	return buf
}

// serialPorts lists serial devices that look like USB LED controllers.
func serialPorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range ports {
		if isUSBSerial(p) {
			out = append(out, p)
		}
	}
	return out
}
