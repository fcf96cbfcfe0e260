package led

import (
	"log/slog"

	"github.com/smazurov/keylight/internal/render"
)

// noop implements Sink for systems without an LED strip.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Name() string { return "noop" }

// Write discards the frame.
func (n *noop) Write(frame render.Frame) error {
	n.logger.Debug("LED strip not available (no-op)", "leds", len(frame))
	return nil
}

func (n *noop) Close() error { return nil }
