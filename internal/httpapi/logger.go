package httpapi

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "propmap-api"

// NewLogger returns the JSON service logger writing to stdout.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerWithFormat(level, "json")
}

// NewLoggerWithFormat is NewLogger with a selectable output format; "console"
// gives zerolog's human-readable writer for local runs.
func NewLoggerWithFormat(level, format string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newLogger(w, level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(level))

	return zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// parseLevel maps LOG_LEVEL onto zerolog; unknown or empty values mean info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
