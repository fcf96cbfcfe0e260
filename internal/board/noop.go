package board

import "log/slog"

// noop implements Controller for boards without a controllable LED.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

// Set logs the request but performs no actual LED control.
func (n *noop) Set(role string, on bool, pattern Pattern) error {
	n.logger.Debug("Board LED control not available (no-op)",
		"role", role,
		"on", on,
		"pattern", pattern)
	return nil
}

// Available returns an empty list since no LEDs are available.
func (n *noop) Available() []string {
	return []string{}
}
