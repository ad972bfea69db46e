package obs

import (
	"os"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	if v {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

type Fields map[string]any

func logWith(ev *zerolog.Event, msg string, f Fields) {
	if f != nil {
		ev = ev.Fields(map[string]any(f))
	}
	ev.Msg(msg)
}

func Info(msg string, f Fields)  { logWith(logger.Info(), msg, f) }
func Error(msg string, f Fields) { logWith(logger.Error(), msg, f) }
func Debug(msg string, f Fields) { logWith(logger.Debug(), msg, f) }
