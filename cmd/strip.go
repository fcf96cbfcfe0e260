package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/effects/store"
	"github.com/smazurov/keylight/internal/keys"
	"github.com/smazurov/keylight/internal/led"
	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/render"
)

// stripFlags configure a standalone renderer for the offline commands.
type stripFlags struct {
	driver      string
	device      string
	baud        int
	wled        string
	wledTimeout int
	totalLEDs   int
	statusLEDs  int
	keyLEDs     int
	presetDir   string
	preset      string
	logJSON     bool
}

func (f *stripFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.driver, "driver", led.DriverAuto, "LED driver (auto, serial, wled, noop)")
	fs.StringVar(&f.device, "serial-device", "", "Serial device for the strip controller")
	fs.IntVar(&f.baud, "baud", 115200, "Serial baud rate")
	fs.StringVar(&f.wled, "wled-address", "", "WLED host:port for UDP realtime frames")
	fs.IntVar(&f.wledTimeout, "wled-timeout", 2, "Seconds WLED holds the last frame")
	fs.IntVar(&f.totalLEDs, "leds", keys.DefaultLayout().TotalLEDs, "Total LEDs on the strip")
	fs.IntVar(&f.statusLEDs, "status-leds", keys.DefaultLayout().StatusLEDs, "Status indicator LEDs at the start of the strip")
	fs.IntVar(&f.keyLEDs, "key-leds", keys.DefaultLayout().KeyLEDs, "LEDs in the key range at the end of the strip")
	fs.StringVar(&f.presetDir, "presets-dir", "presets", "Preset directory")
	fs.StringVar(&f.preset, "preset", "", "Preset to load before rendering")
	fs.BoolVar(&f.logJSON, "log-json", false, "Output logs in JSON format")
}

func (f *stripFlags) initLogging() {
	cfg := logging.Config{Level: "info", Format: "text"}
	if f.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// rig is a renderer wired to a strip without MIDI or the API.
type rig struct {
	keys   *keys.Store
	live   *effects.Live
	output *led.Output
	engine *render.Engine
}

func (f *stripFlags) build(ctx context.Context, logger *slog.Logger) (*rig, error) {
	layout := keys.Layout{TotalLEDs: f.totalLEDs, StatusLEDs: f.statusLEDs, KeyLEDs: f.keyLEDs}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	live := effects.NewLive(effects.Defaults(), store.NewTOML(f.presetDir))
	if f.preset != "" {
		if _, err := live.Load(f.preset); err != nil {
			return nil, fmt.Errorf("load preset %q: %w", f.preset, err)
		}
	}

	sink, err := led.New(led.Config{
		Driver:       f.driver,
		SerialDevice: f.device,
		BaudRate:     f.baud,
		WLEDAddress:  f.wled,
		WLEDTimeout:  f.wledTimeout,
	}, logging.GetLogger("led"))
	if err != nil {
		return nil, err
	}

	ks := keys.NewStore()
	ks.SetFade(live.Get().Policy.Mode != effects.ModeStatic)

	output := led.NewOutput(sink, nil, logging.GetLogger("led"))
	output.Start(ctx)

	engine := render.NewEngine(render.NewRenderer(layout), live, ks, output, render.WithLogger(logger))
	return &rig{keys: ks, live: live, output: output, engine: engine}, nil
}

func (r *rig) close() {
	r.engine.Stop()
	r.output.Stop()
}
