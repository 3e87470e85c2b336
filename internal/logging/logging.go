// Package logging constructs the zerolog.Logger every package in this
// module is handed at construction time.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger at level (parsed with
// zerolog.ParseLevel; an unrecognized level falls back to info).
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
