package led

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/smazurov/keylight/internal/board"
)

// Drivers.
const (
	DriverAuto   = "auto"
	DriverSerial = "serial"
	DriverWLED   = "wled"
	DriverNoop   = "noop"
)

var listPorts = serialPorts

// Config selects and configures the strip sink.
type Config struct {
	Driver       string
	SerialDevice string
	BaudRate     int
	WLEDAddress  string
	WLEDTimeout  int
}

// New creates the strip sink for cfg. The auto driver prefers a serial device
// (the configured one if present, else the first USB serial port), then WLED
// when an address is configured, and falls back to a no-op sink.
func New(cfg Config, logger *slog.Logger) (Sink, error) {
	logger.Info("Selecting LED driver", "driver", cfg.Driver, "board_model", board.Model())

	switch cfg.Driver {
	case DriverSerial:
		if cfg.SerialDevice == "" {
			return nil, fmt.Errorf("serial driver requires a device")
		}
		return newSerial(cfg.SerialDevice, cfg.BaudRate, logger), nil

	case DriverWLED:
		if cfg.WLEDAddress == "" {
			return nil, fmt.Errorf("wled driver requires an address")
		}
		return newWLED(cfg.WLEDAddress, cfg.WLEDTimeout), nil

	case DriverNoop:
		return newNoop(logger), nil

	case "", DriverAuto:
		if cfg.SerialDevice != "" {
			if _, err := os.Stat(cfg.SerialDevice); err == nil {
				logger.Info("Using configured serial device", "device", cfg.SerialDevice)
				return newSerial(cfg.SerialDevice, cfg.BaudRate, logger), nil
			}
			logger.Warn("Configured serial device not present", "device", cfg.SerialDevice)
		}
		if ports := listPorts(); len(ports) > 0 {
			logger.Info("Detected USB serial device", "device", ports[0], "candidates", len(ports))
			return newSerial(ports[0], cfg.BaudRate, logger), nil
		}
		if cfg.WLEDAddress != "" {
			logger.Info("Using WLED sink", "address", cfg.WLEDAddress)
			return newWLED(cfg.WLEDAddress, cfg.WLEDTimeout), nil
		}
		logger.Info("No LED strip detected, using no-op sink")
		return newNoop(logger), nil

	default:
		return nil, fmt.Errorf("unknown LED driver %q", cfg.Driver)
	}
}

// isUSBSerial reports whether a port name looks like a USB CDC or FTDI adapter.
func isUSBSerial(port string) bool {
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB", "/dev/cu.usbmodem", "/dev/cu.usbserial"} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	return false
}
