package led

import (
	"errors"
	"strings"

	"github.com/smazurov/keylight/internal/render"
)

// Multi writes every frame to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. A single sink is returned as is.
func NewMulti(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &Multi{sinks: sinks}
}

// Name joins the sink names with "+".
func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Write writes frame to every sink and joins their errors.
func (m *Multi) Write(frame render.Frame) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
