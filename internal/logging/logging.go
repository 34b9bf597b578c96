// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the log level and output format ("console" or "json").
type Options struct {
	Level  string
	Format string
	Debug  bool
	Out    io.Writer
}

// ParseLevel maps a level name onto zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New builds a logger without touching global state.
func New(opt Options) zerolog.Logger {
	out := opt.Out
	if out == nil {
		out = os.Stderr
	}
	lvl := ParseLevel(opt.Level)
	if opt.Debug {
		lvl = zerolog.DebugLevel
	}
	if strings.EqualFold(opt.Format, "json") {
		return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if lvl <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Setup installs New(opt) as the global logger and returns it.
func Setup(opt Options) zerolog.Logger {
	l := New(opt)
	zerolog.SetGlobalLevel(l.GetLevel())
	log.Logger = l
	return l
}
