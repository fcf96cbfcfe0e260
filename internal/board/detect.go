package board

import (
	"log/slog"
	"os"
	"strings"
)

var deviceTreeModelPath = "/proc/device-tree/model"

// Model reads the device tree model to identify the board. It returns "unknown"
// when the model cannot be read.
func Model() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}

// New creates a Controller for the detected board, falling back to a no-op controller.
func New(logger *slog.Logger) Controller {
	model := Model()
	logger.Info("Detecting board for status LED", "board_model", model)

	var led string
	switch {
	case strings.Contains(model, "NanoPC-T6"):
		led = "sys_led"
	case strings.Contains(model, "Orange Pi"):
		led = "green_led"
	case strings.Contains(model, "Raspberry Pi"):
		led = "ACT"
	default:
		logger.Info("No board LED support detected, using no-op controller", "board_model", model)
		return newNoop(logger)
	}

	logger.Info("Using sysfs board LED", "board_model", model, "led", led)
	return newSysfs(sysfsLEDPath, map[string]string{StatusLED: led})
}
