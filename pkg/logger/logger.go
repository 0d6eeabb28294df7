// Package logger builds the zerolog loggers used by the wallet CLI and the
// sandbox server. Logs go to stderr so CLI output on stdout stays parseable.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and format of a logger.
type Options struct {
	Level  string // trace, debug, info, warn, error, disabled
	Pretty bool   // console output instead of JSON
	Caller bool   // annotate entries with file:line
}

// New returns the server logger: stderr, with caller annotations.
func New(level string, pretty bool) zerolog.Logger {
	return Build(os.Stderr, Options{Level: level, Pretty: pretty, Caller: true})
}

// Build returns a logger writing to w according to opts.
func Build(w io.Writer, opts Options) zerolog.Logger {
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ParseLevel maps a configured level name to a zerolog level. Unknown or
// empty names mean info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
