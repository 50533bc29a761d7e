package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development gets a human-readable console
// writer, everything else emits JSON.
func New(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if environment == "development" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}
