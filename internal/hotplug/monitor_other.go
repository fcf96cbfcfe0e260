//go:build !linux

package hotplug

import "context"

// Monitor is unavailable off Linux.
type Monitor struct{}

// NewMonitor always fails with ErrUnsupported.
func NewMonitor() (*Monitor, error) {
	return nil, ErrUnsupported
}

// Run returns ErrUnsupported.
func (m *Monitor) Run(context.Context, func(Event) bool, func(Event)) error {
	return ErrUnsupported
}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }
