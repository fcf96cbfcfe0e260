package led

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/render"
)

type fakePort struct {
	bytes.Buffer
	failWrite bool
	closed    bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failWrite {
		return 0, errors.New("input/output error")
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestEncodeAdalight(t *testing.T) {
	frame := make(render.Frame, 144)
	frame[0] = color.RGB{R: 1, G: 2, B: 3}

	buf := encodeAdalight(nil, frame)
	if len(buf) != 6+3*144 {
		t.Fatalf("packet length = %d", len(buf))
	}
	header := []byte{'A', 'd', 'a', 0x00, 143, 0x00 ^ 143 ^ 0x55}
	if !bytes.Equal(buf[:6], header) {
		t.Errorf("header = %v, want %v", buf[:6], header)
	}
	if !bytes.Equal(buf[6:9], []byte{1, 2, 3}) {
		t.Errorf("first LED = %v", buf[6:9])
	}

	big := encodeAdalight(nil, make(render.Frame, 300))
	if big[3] != 1 || big[4] != 43 || big[5] != 1^43^0x55 {
		t.Errorf("300-LED header = %v", big[:6])
	}
}

func TestSerialSink_ReopensAfterFailure(t *testing.T) {
	var ports []*fakePort
	failOpen := false
	s := newSerial("/dev/ttyACM0", 0, testLogger())
	s.open = func(device string, baud int) (io.WriteCloser, error) {
		if failOpen {
			return nil, errors.New("no such file or directory")
		}
		if baud != DefaultBaudRate {
			t.Errorf("baud = %d, want default", baud)
		}
		p := &fakePort{}
		ports = append(ports, p)
		return p, nil
	}

	frame := make(render.Frame, 4)
	if err := s.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(ports) != 1 || ports[0].Len() != 6+12 {
		t.Fatalf("unexpected port state: %d ports", len(ports))
	}

	ports[0].failWrite = true
	if err := s.Write(frame); !errors.Is(err, ErrHardwareUnavailable) {
		t.Errorf("write failure error = %v, want ErrHardwareUnavailable", err)
	}
	if !ports[0].closed {
		t.Error("failed port not closed")
	}

	failOpen = true
	if err := s.Write(frame); !errors.Is(err, ErrHardwareUnavailable) {
		t.Errorf("open failure error = %v, want ErrHardwareUnavailable", err)
	}

	failOpen = false
	if err := s.Write(frame); err != nil {
		t.Fatalf("Write after recovery failed: %v", err)
	}
	if len(ports) != 2 {
		t.Errorf("ports opened = %d, want 2", len(ports))
	}

	if err := s.Close(); err != nil || !ports[1].closed {
		t.Error("Close did not close the open port")
	}
}

func TestIsUSBSerial(t *testing.T) {
	tests := []struct {
		port string
		want bool
	}{
		{"/dev/ttyACM0", true},
		{"/dev/ttyUSB1", true},
		{"/dev/cu.usbmodem14101", true},
		{"/dev/ttyS0", false},
		{"/dev/ttyAMA0", false},
	}
	for _, tt := range tests {
		if got := isUSBSerial(tt.port); got != tt.want {
			t.Errorf("isUSBSerial(%q) = %v, want %v", tt.port, got, tt.want)
		}
	}
}
