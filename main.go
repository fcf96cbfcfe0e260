package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/keylight/cmd"
	"github.com/smazurov/keylight/internal/api"
	"github.com/smazurov/keylight/internal/board"
	"github.com/smazurov/keylight/internal/config"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/effects/store"
	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/hotplug"
	"github.com/smazurov/keylight/internal/keys"
	"github.com/smazurov/keylight/internal/led"
	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/metrics/exporters"
	"github.com/smazurov/keylight/internal/midi"
	"github.com/smazurov/keylight/internal/preview"
	"github.com/smazurov/keylight/internal/render"
	"github.com/smazurov/keylight/internal/systemd"
	"github.com/smazurov/keylight/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Strip settings
	LEDCount            int    `help:"Total LEDs on the strip" default:"144" toml:"leds.count" env:"LEDS_COUNT"`
	LEDStatusCount      int    `help:"Status indicator LEDs at the start of the strip" default:"5" toml:"leds.status_count" env:"LEDS_STATUS_COUNT"`
	LEDKeyCount         int    `help:"LEDs in the key range at the end of the strip" default:"88" toml:"leds.key_count" env:"LEDS_KEY_COUNT"`
	LEDStatusIndicators bool   `help:"Light the status indicator LEDs" default:"true" toml:"leds.status_indicators" env:"LEDS_STATUS_INDICATORS"`
	LEDEnabled          bool   `help:"Start rendering at startup" default:"true" toml:"leds.enabled" env:"LEDS_ENABLED"`
	LEDFPS              int    `help:"Frames per second" default:"30" toml:"leds.fps" env:"LEDS_FPS"`
	LEDDriver           string `help:"LED driver (auto, serial, wled, noop)" default:"auto" toml:"leds.driver" env:"LEDS_DRIVER"`
	LEDSerialDevice     string `help:"Serial device for the strip controller" default:"" toml:"leds.serial_device" env:"LEDS_SERIAL_DEVICE"`
	LEDBaudRate         int    `help:"Serial baud rate" default:"115200" toml:"leds.baud_rate" env:"LEDS_BAUD_RATE"`
	LEDWLEDAddress      string `help:"WLED host:port for UDP realtime frames" default:"" toml:"leds.wled_address" env:"LEDS_WLED_ADDRESS"`
	LEDWLEDTimeout      int    `help:"Seconds WLED holds the last frame" default:"2" toml:"leds.wled_timeout" env:"LEDS_WLED_TIMEOUT"`

	// MIDI settings
	MIDIEnabled   bool   `help:"Listen for MIDI input" default:"true" toml:"midi.enabled" env:"MIDI_ENABLED"`
	MIDIPreferred string `help:"Comma separated preferred device name patterns" default:"Piano,Clavinova,Digital" toml:"midi.preferred" env:"MIDI_PREFERRED"`
	MIDIExcluded  string `help:"Comma separated excluded device name patterns" default:"Midi Through,Through Port,Dummy" toml:"midi.excluded" env:"MIDI_EXCLUDED"`
	MIDIRescanMs  int    `help:"Device rescan interval in milliseconds" default:"1000" toml:"midi.rescan_ms" env:"MIDI_RESCAN_MS"`

	// Preset settings
	PresetsDir    string `help:"Preset directory" default:"presets" toml:"presets.dir" env:"PRESETS_DIR"`
	PresetsFormat string `help:"Preset file format (toml, yaml)" default:"toml" toml:"presets.format" env:"PRESETS_FORMAT"`

	// Observability settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	PreviewEnabled bool `help:"Serve the WebSocket frame preview" default:"true" toml:"preview.enabled" env:"PREVIEW_ENABLED"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// watchHotplug rescans MIDI inputs when a sound device is plugged or unplugged.
// The periodic rescan still covers platforms without kernel uevents.
func watchHotplug(ctx context.Context, w *midi.Watcher, logger *slog.Logger) {
	mon, err := hotplug.NewMonitor()
	if err != nil {
		logger.Debug("Hotplug monitor unavailable", "error", err)
		return
	}
	defer mon.Close()

	err = mon.Run(ctx, hotplug.Filter(hotplug.SubsystemSound), func(ev hotplug.Event) {
		logger.Debug("Sound device event", "action", ev.Action, "device", ev.DevName)
		w.Rescan()
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("Hotplug monitor stopped", "error", err)
	}
}

// stripLayout partitions the strip from the LED options.
func stripLayout(opts *Options) keys.Layout {
	return keys.Layout{TotalLEDs: opts.LEDCount, StatusLEDs: opts.LEDStatusCount, KeyLEDs: opts.LEDKeyCount}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Module levels come from the file; global level and format from options.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")
		logger.Info("Starting keylight", "version", version.String())

		eventBus := events.New()

		layout := stripLayout(opts)
		if err := layout.Validate(); err != nil {
			logger.Error("Invalid strip layout", "error", err)
			os.Exit(1)
		}

		presetStore, err := store.New(opts.PresetsDir, store.Format(opts.PresetsFormat))
		if err != nil {
			logger.Error("Invalid preset store", "error", err)
			os.Exit(1)
		}

		keyStore := keys.NewStore()
		live := effects.NewLive(effects.Defaults(), presetStore)
		live.OnChange(func(s effects.Settings) {
			keyStore.SetFade(s.Policy.Mode != effects.ModeStatic)
			eventBus.Publish(events.SettingsChangedEvent{
				Settings:  s,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})
		if name, loadErr := live.LoadLatest(); loadErr != nil {
			logger.Warn("Failed to restore last preset, using defaults", "error", loadErr)
		} else if name != "" {
			logger.Info("Restored preset", "name", name)
		}
		keyStore.SetFade(live.Get().Policy.Mode != effects.ModeStatic)

		ledLogger := logging.GetLogger("led")
		strip, err := led.New(led.Config{
			Driver:       opts.LEDDriver,
			SerialDevice: opts.LEDSerialDevice,
			BaudRate:     opts.LEDBaudRate,
			WLEDAddress:  opts.LEDWLEDAddress,
			WLEDTimeout:  opts.LEDWLEDTimeout,
		}, ledLogger)
		if err != nil {
			logger.Error("Failed to create LED driver", "error", err)
			os.Exit(1)
		}

		var previewHub *preview.Hub
		sink := strip
		if opts.PreviewEnabled {
			previewHub = preview.NewHub(logging.GetLogger("preview"), preview.Config{})
			sink = led.NewMulti(strip, previewHub)
		}
		output := led.NewOutput(sink, eventBus, ledLogger)

		interval := render.DefaultInterval
		if opts.LEDFPS > 0 {
			interval = time.Second / time.Duration(opts.LEDFPS)
		}
		engine := render.NewEngine(render.NewRenderer(layout), live, keyStore, output,
			render.WithInterval(interval),
			render.WithEventBus(eventBus),
		)
		engine.SetStatusIndicators(opts.LEDStatusIndicators)

		boardLogger := logging.GetLogger("board")
		indicator := board.NewIndicator(board.New(boardLogger), eventBus, boardLogger)

		var midiDriver midi.Driver
		var midiWatcher *midi.Watcher
		if opts.MIDIEnabled {
			midiLogger := logging.GetLogger("midi")
			midiDriver, err = midi.OpenDriver()
			if err != nil {
				midiLogger.Warn("MIDI driver unavailable, running without input", "error", err)
			} else {
				midiWatcher = midi.NewWatcher(midiDriver, keyStore, midi.WatcherConfig{
					Preferred:      splitList(opts.MIDIPreferred),
					Excluded:       splitList(opts.MIDIExcluded),
					RescanInterval: time.Duration(opts.MIDIRescanMs) * time.Millisecond,
				}, eventBus, midiLogger)
			}
		}

		sseExporter := exporters.NewSSEExporter(eventBus)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Settings:     live,
			Renderer:     engine,
			Keys:         keyStore,
			Output:       output,
			EventBus:     eventBus,
		}
		if midiWatcher != nil {
			apiOpts.MIDI = midiWatcher
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		if previewHub != nil {
			apiOpts.PreviewHandler = previewHub
		}
		server := api.NewServer(apiOpts)

		configWatcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logging.GetLogger("config"))
		configWatcher.OnReload(func(c logging.Config) {
			logging.SetLevels(c)
			logger.Info("Logging levels reloaded", "level", c.Level)
		})

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			output.Start(ctx)
			if previewHub != nil {
				previewHub.Run(ctx)
			}
			indicator.Start()
			sseExporter.Start(ctx)

			if opts.LEDEnabled {
				engine.Start()
			}
			if midiWatcher != nil {
				midiWatcher.Start(ctx)
				go watchHotplug(ctx, midiWatcher, logging.GetLogger("midi"))
			}
			if startErr := configWatcher.Start(); startErr != nil {
				logger.Warn("Config file watch disabled", "error", startErr)
			}

			notifier.Ready(ctx)
			notifier.Status("Serving on " + opts.Port)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := configWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}

			// Input first so no key is left lit by a late note-on.
			if midiWatcher != nil {
				midiWatcher.Stop()
			}
			if midiDriver != nil {
				_ = midiDriver.Close()
			}

			engine.Stop()
			output.Stop()
			sseExporter.Stop()
			indicator.Stop()
			cancel()
		})
	})

	cli.Root().Version = version.String()
	cli.Root().AddCommand(
		cmd.CreateReplayCmd(),
		cmd.CreateTestPatternCmd(),
		cmd.CreateMIDIInputsCmd(),
		cmd.CreatePresetCmd(),
	)

	cli.Run()
}
