package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu           sync.RWMutex
	base         = zerolog.New(os.Stdout).With().Timestamp().Logger()
	debugEnabled bool
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	mu.Lock()
	debugEnabled = v
	mu.Unlock()
}

// SetOutput redirects log lines to w as JSON.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

// UseConsole switches to human readable output on w (used by interactive commands).
func UseConsole(w io.Writer) {
	SetOutput(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

type Fields map[string]any

func logWith(level zerolog.Level, msg string, f Fields) {
	mu.RLock()
	l := base
	mu.RUnlock()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	ev.Fields(map[string]any(f)).Msg(msg)
}

func Info(msg string, f Fields)  { logWith(zerolog.InfoLevel, msg, f) }
func Warn(msg string, f Fields)  { logWith(zerolog.WarnLevel, msg, f) }
func Error(msg string, f Fields) { logWith(zerolog.ErrorLevel, msg, f) }
func Debug(msg string, f Fields) {
	mu.RLock()
	on := debugEnabled
	mu.RUnlock()
	if on {
		logWith(zerolog.DebugLevel, msg, f)
	}
}
