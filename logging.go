// logging.go - structured logging facade for the mcast runtime.
//
// Package-level configuration for structured logging, mirroring the
// teacher's design: a package-level logger behind an atomic pointer, with
// an IsEnabled fast-path check so callers never format fields for a
// disabled level. The sink is github.com/joeycumines/logiface (paired with
// the slog backend from github.com/joeycumines/logiface-slog) instead of a
// hand-rolled writer, so the declared logiface dependency is actually
// exercised rather than left dead in go.mod.
package mcast

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logging interface services and the scheduler log
// through. It is a thin facade over logiface.Logger[*islog.Event] so callers
// depend on a narrow interface rather than the generic type directly.
type Logger interface {
	IsEnabled(level logiface.Level) bool
	Debug() *logiface.Builder[*islog.Event]
	Info() *logiface.Builder[*islog.Event]
	Warn() *logiface.Builder[*islog.Event]
	Error() *logiface.Builder[*islog.Event]
}

// logifaceLogger adapts *logiface.Logger[*islog.Event] to Logger.
type logifaceLogger struct {
	l *logiface.Logger[*islog.Event]
}

func (g logifaceLogger) IsEnabled(level logiface.Level) bool    { return g.l.Level() >= level }
func (g logifaceLogger) Debug() *logiface.Builder[*islog.Event] { return g.l.Debug() }
func (g logifaceLogger) Info() *logiface.Builder[*islog.Event]  { return g.l.Info() }
func (g logifaceLogger) Warn() *logiface.Builder[*islog.Event]  { return g.l.Warning() }
func (g logifaceLogger) Error() *logiface.Builder[*islog.Event] { return g.l.Err() }

// NewLogger wraps an slog.Handler as a Logger, using logiface-slog as the
// bridge (see SPEC_FULL.md section 6, AMBIENT STACK).
func NewLogger(handler slog.Handler) Logger {
	return logifaceLogger{l: islog.L.New(islog.L.WithSlogHandler(handler))}
}

// defaultLogger builds the package default: a text handler over stderr at
// Info level, matching the teacher's NewDefaultLogger(LevelInfo) default.
func defaultLogger() Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// globalLogger holds the package-level default logger behind an atomic
// pointer, matching the teacher's RWMutex-guarded global but lock-free on
// the read path.
var globalLogger atomic.Pointer[Logger]

// SetLogger sets the process-wide default logger used by components that
// were not constructed with an explicit WithLogger RuntimeOption.
func SetLogger(l Logger) {
	globalLogger.Store(&l)
}

// getLogger safely retrieves the global logger, falling back to the default.
func getLogger() Logger {
	if p := globalLogger.Load(); p != nil {
		return *p
	}
	return defaultLogger()
}
