package logging

import (
	"context"

	"finbench/internal/utils/id"
)

// WithLogID tags every line of logger with logID. Structured loggers get a
// logid field; anything else gets a "logid=<id> " prefix.
func WithLogID(logger Logger, logID string) Logger {
	logger = OrNop(logger)
	if logID == "" {
		return logger
	}
	switch l := logger.(type) {
	case nopLogger:
		return l
	case *structuredLogger:
		return l.withLogID(logID)
	}
	return &prefixLogger{next: logger, prefix: "logid=" + logID + " "}
}

// FromContext tags logger with the log id carried by ctx, if any.
func FromContext(ctx context.Context, logger Logger) Logger {
	return WithLogID(logger, id.LogIDFromContext(ctx))
}

type prefixLogger struct {
	next   Logger
	prefix string
}

func (l *prefixLogger) Debug(format string, args ...any) { l.next.Debug(l.prefix+format, args...) }
func (l *prefixLogger) Info(format string, args ...any)  { l.next.Info(l.prefix+format, args...) }
func (l *prefixLogger) Warn(format string, args ...any)  { l.next.Warn(l.prefix+format, args...) }
func (l *prefixLogger) Error(format string, args ...any) { l.next.Error(l.prefix+format, args...) }
