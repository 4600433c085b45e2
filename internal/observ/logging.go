package observ

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger zerolog.Logger
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetOutput redirects all structured log lines to w.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Output(w)
}

// SetLevel accepts zerolog level names (debug, info, warn, error).
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Level(lvl)
	return nil
}

func current() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Log writes an info-level event with its key/value context.
func Log(event string, kv map[string]any) {
	l := current()
	l.Info().Str("event", event).Fields(kv).Send()
}

func Debug(event string, kv map[string]any) {
	l := current()
	l.Debug().Str("event", event).Fields(kv).Send()
}

func Warn(event string, kv map[string]any) {
	l := current()
	l.Warn().Str("event", event).Fields(kv).Send()
}

func Error(event string, err error, kv map[string]any) {
	l := current()
	l.Error().Str("event", event).Err(err).Fields(kv).Send()
}
