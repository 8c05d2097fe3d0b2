package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. level is one of debug, info, warn or
// error (default info). Output is human-readable on stderr unless jsonOutput
// is set.
func Init(level string, jsonOutput bool) {
	InitWriter(os.Stderr, level, jsonOutput)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, jsonOutput bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	if jsonOutput {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
