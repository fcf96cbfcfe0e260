package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Driver enumerates and opens MIDI input ports.
type Driver interface {
	Inputs() ([]string, error)
	Open(name string) (Port, error)
	Close() error
}

// Port is an open MIDI input.
type Port interface {
	// Listen delivers messages to onMsg until stop is called. onErr is called
	// from the listener goroutine when the port fails.
	Listen(onMsg func(msg midi.Message), onErr func(err error)) (stop func(), err error)
	Close() error
}

// gomidiDriver adapts a gomidi driver.
type gomidiDriver struct {
	drv drivers.Driver
}

// OpenDriver opens the system MIDI driver (rtmidi: ALSA on Linux, CoreMIDI on macOS).
func OpenDriver() (Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &gomidiDriver{drv: drv}, nil
}

func (g *gomidiDriver) Inputs() ([]string, error) {
	ins, err := g.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

func (g *gomidiDriver) Open(name string) (Port, error) {
	ins, err := g.drv.Ins()
	if err != nil {
		return nil, err
	}
	for _, in := range ins {
		if in.String() != name {
			continue
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %q: %w", name, err)
		}
		return &gomidiPort{in: in}, nil
	}
	return nil, fmt.Errorf("input %q not found", name)
}

func (g *gomidiDriver) Close() error {
	return g.drv.Close()
}

type gomidiPort struct {
	in drivers.In
}

func (p *gomidiPort) Listen(onMsg func(msg midi.Message), onErr func(err error)) (func(), error) {
	return midi.ListenTo(p.in, func(msg midi.Message, _ int32) {
		onMsg(msg)
	}, midi.HandleError(onErr))
}

func (p *gomidiPort) Close() error {
	return p.in.Close()
}
