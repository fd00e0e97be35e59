// Package log wraps zerolog the way the teacher's src/pkg/logging does:
// a thin Logger type with per-component sub-loggers instead of a bare
// global logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a structured logger scoped to one component.
type Logger struct {
	zl zerolog.Logger
}

// NewConsole returns a human-readable, color-terminal logger for CLI use.
func NewConsole(level zerolog.Level) *Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// New returns a JSON logger writing to w, for daemon/service use.
func New(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Component returns a sub-logger tagged with a "component" field, so
// log lines from the coordinator, wire codec, storage adapters, and
// publisher are distinguishable without separate logger plumbing.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// With starts a field-scoped sub-logger. Typical use:
// l.With().Str("doc_id", id).Str("conn_id", c).Logger().Info().Msg("applied delta")
func (l *Logger) With() zerolog.Context {
	return l.zl.With()
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Raw exposes the underlying zerolog.Logger for callers that need it
// verbatim (e.g. wiring into a third-party library's logger hook).
func (l *Logger) Raw() zerolog.Logger { return l.zl }
