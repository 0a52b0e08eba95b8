// Package logging builds the zerolog logger used outside the scheduling core.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects the level and output format.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// New creates a logger writing to w, or stdout when w is nil.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.ErrorFieldName = "err"

	out := w
	if !strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: true}
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
}

// ParseLevel parses a level name, falling back to def when empty or unknown.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}
