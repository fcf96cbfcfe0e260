package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Identifier is the journal SYSLOG_IDENTIFIER for every record.
const Identifier = "keylight"

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mutex       sync.RWMutex
	modules     = make(map[string]*moduleLogger)
	current     Config
	initialized bool
	rootLevel   = &slog.LevelVar{}

	// stdout is swapped by tests.
	stdout io.Writer = os.Stdout
)

// Initialize sets the output format and levels. Loggers handed out earlier are
// rebuilt so they pick up the format and journal output.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = config
	initialized = true

	rootLevel.Set(levelOr(config.Level, slog.LevelInfo))
	for name, m := range modules {
		m.level.Set(moduleLevel(config, name))
		*m.logger = *slog.New(createHandler(config.Format, m.level)).With("module", name)
	}
	slog.SetDefault(slog.New(createHandler(config.Format, rootLevel)))
}

// SetLevels applies new global and per-module levels without rebuilding handlers.
// The output format is fixed at Initialize.
func SetLevels(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current.Level = config.Level
	current.Modules = config.Modules
	rootLevel.Set(levelOr(config.Level, slog.LevelInfo))
	for name, m := range modules {
		m.level.Set(moduleLevel(current, name))
	}
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	m, ok := modules[module]
	mutex.RUnlock()
	if ok {
		return m.logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if initialized {
		level.Set(moduleLevel(current, module))
		format = current.Format
	}
	logger := slog.New(createHandler(format, level)).With("module", module)
	modules[module] = &moduleLogger{logger: logger, level: level}
	return logger
}

func moduleLevel(config Config, module string) slog.Level {
	global := levelOr(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		return levelOr(s, global)
	}
	return global
}

// createHandler builds the handler chain: stdout when something is attached to it,
// plus the journal when journald is running.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var out slog.Handler
	if format == "json" {
		out = slog.NewJSONHandler(stdout, opts)
	} else {
		out = slog.NewTextHandler(stdout, opts)
	}

	var handlers []slog.Handler
	if stdout != io.Writer(os.Stdout) || isStdoutAvailable() {
		handlers = append(handlers, out)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return out
	case 1:
		return handlers[0]
	default:
		return fanout(handlers)
	}
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or file
// rather than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l, ok := ParseLevel(s); ok {
		return l
	}
	return fallback
}
