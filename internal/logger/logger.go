package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, output format and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

var (
	mu    sync.RWMutex
	log   = zerolog.New(io.Discard)
	debug bool
)

// Init configures the global JSON logger. Safe to call again to reconfigure.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"

	level := parseLevel(cfg.Level)

	mu.Lock()
	log = zerolog.New(out).Level(level).With().Timestamp().Logger()
	debug = level <= zerolog.DebugLevel
	mu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetDebug toggles debug output without touching other settings.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
	if enabled {
		log = log.Level(zerolog.DebugLevel)
	} else if log.GetLevel() < zerolog.InfoLevel {
		log = log.Level(zerolog.InfoLevel)
	}
}

// Logger returns the underlying zerolog logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, fields map[string]any) {
	mu.RLock()
	enabled := debug
	mu.RUnlock()
	if !enabled {
		return
	}
	write(zerolog.DebugLevel, msg, fields)
}

func Info(msg string, fields map[string]any) {
	write(zerolog.InfoLevel, msg, fields)
}

func Warn(msg string, fields map[string]any) {
	write(zerolog.WarnLevel, msg, fields)
}

func Error(msg string, fields map[string]any) {
	write(zerolog.ErrorLevel, msg, fields)
}

func write(level zerolog.Level, msg string, fields map[string]any) {
	l := Logger()
	l.WithLevel(level).Fields(fields).Msg(msg)
}
