// Package logging provides the printf-style logger the harness components
// depend on, backed by the structured observability logger.
package logging

import (
	"fmt"
	"os"
	"reflect"
	"sync"

	"finbench/internal/observability"
)

// Logger is the logging contract components accept.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil, including a typed nil pointer.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	v := reflect.ValueOf(logger)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrNop returns logger, or Nop when it is nil.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

var (
	baseMu sync.RWMutex
	base   *observability.Logger
)

// SetBase installs the process-wide structured logger behind
// NewComponentLogger. Loggers created earlier keep their old base.
func SetBase(logger *observability.Logger) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base = logger
}

func currentBase() *observability.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	if base == nil {
		return observability.NewLogger(observability.LogConfig{Level: "info", Format: "text", Output: os.Stderr})
	}
	return base
}

// NewComponentLogger returns a logger tagged component=<component>.
func NewComponentLogger(component string) Logger {
	return ForComponent(currentBase(), component)
}

// ForComponent adapts a structured logger to the printf contract.
func ForComponent(logger *observability.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	if component != "" {
		logger = logger.With("component", component)
	}
	return &structuredLogger{logger: logger}
}

type structuredLogger struct {
	logger *observability.Logger
}

func (l *structuredLogger) Debug(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Info(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Warn(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Error(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) withLogID(logID string) Logger {
	return &structuredLogger{logger: l.logger.With("logid", logID)}
}
