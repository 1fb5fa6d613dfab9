package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger: console output on stderr tagged with the
// service name. An unknown level string falls back to info.
func New(level string) *zerolog.Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter is New with a caller-chosen destination, for tests and for
// piping logs somewhere other than the terminal.
func NewWithWriter(level string, out io.Writer) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	logger := zerolog.New(console).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "talkline").
		Logger()
	return &logger
}
