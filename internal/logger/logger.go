package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger from a level ("debug",
// "info", ...) and format ("console" or "json"). Unknown formats fall
// back to console.
func Setup(level, format string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)

	var out zerolog.ConsoleWriter
	switch strings.ToLower(format) {
	case "json":
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return nil
	default:
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// WithComponent returns a logger tagged with a component field, the
// convention used across matchctl's subcommands.
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
