package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process logger. Development gets a human console writer
// at debug level; production logs structured JSON at info level.
func New(environment string) zerolog.Logger {
	var logger zerolog.Logger
	if environment == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		logger = zerolog.New(os.Stdout)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	return logger.With().
		Timestamp().
		Str("service", "artbooru-api").
		Str("env", environment).
		Logger()
}
