// Package logging sets up slog for the daemon: one cached logger per module,
// each with its own level, writing text or JSON to stdout and structured
// fields to the systemd journal when journald is running.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"midi": "debug"},
//	})
//	logger := logging.GetLogger("midi")
//	logger.Info("MIDI device connected", "device", name)
//
// Loggers may be fetched before Initialize; they are rebuilt in place, so
// package-level loggers pick up the configured handler. SetLevels changes
// levels at runtime without touching the output format, which is how the
// config watcher applies edits to the [logging] section:
//
//	[logging]
//	level = "info"
//
//	[logging.modules]
//	midi = "debug"
//	api = "warn"
//
// Every journal entry carries SYSLOG_IDENTIFIER=keylight and a MODULE field:
//
//	journalctl -t keylight MODULE=led -f
package logging
