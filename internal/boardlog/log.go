// Package boardlog provides the single structured logger shared by every
// board package. It exists so that log setup (level, time format, writer)
// lives in one place instead of being repeated per package.
package boardlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func configure() {
	zerolog.TimeFieldFormat = timeFormat

	base = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: timeFormat,
	}).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetLevel adjusts the global minimum log level, e.g. from a config value.
func SetLevel(level zerolog.Level) {
	once.Do(configure)
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string to a zerolog.Level, defaulting to Info
// for anything unrecognised.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// For returns a child logger carrying a "module" field, the board's
// equivalent of the teacher repo's LogPrefix-on-every-line convention.
func For(module string) zerolog.Logger {
	once.Do(configure)
	return base.With().Str("module", module).Logger()
}
