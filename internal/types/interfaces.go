package types

import (
	"log/slog"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant in UTC.
func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

// Logger defines the structured logging interface used throughout the gateway.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (n NopLogger) With(...any) Logger { return n }

// SlogLogger adapts *slog.Logger to Logger. slog's With returns
// *slog.Logger, so the method set does not match without the wrapper.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps l.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: l}
}

func (a *SlogLogger) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogLogger) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *SlogLogger) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: a.logger.With(args...)}
}
