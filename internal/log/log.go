// Package log provides the package-level logging functions used across
// the service and CLI binaries. The call shape (Printf-style format and
// args) matches the rest of the codebase; the backing is zerolog, styled
// after a human-readable console writer in development and structured
// JSON otherwise.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339

	var output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true}
	if os.Getenv("STV_LOG_FORMAT") == "json" {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(output).With().Timestamp().Logger()
	}

	level := zerolog.InfoLevel
	if v := os.Getenv("STV_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	logger = logger.Level(level)
}

// Debug logs a debug-level message. Call sites use Printf-style
// formatting, same as Info and Error.
func Debug(format string, a ...any) {
	logger.Debug().Msgf(format, a...)
}

// Info logs an info-level message.
func Info(format string, a ...any) {
	logger.Info().Msgf(format, a...)
}

// Error logs an error-level message.
func Error(format string, a ...any) {
	logger.Error().Msgf(format, a...)
}

// Fatal logs an error-level message and terminates the process with a
// non-zero exit code.
func Fatal(format string, a ...any) {
	logger.Fatal().Msgf(format, a...)
}
