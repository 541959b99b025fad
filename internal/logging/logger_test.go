package logging

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"finbench/internal/observability"
	"finbench/internal/utils/id"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func (r *recordingLogger) add(level, format string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *recordingLogger
	var logger Logger = typed
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world")
}

func TestForComponentFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := ForComponent(base, "ReferenceCache")
	logger.Info("hello %s", "world")

	if want := "hello world"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if want := "component=ReferenceCache"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}

func TestWithLogIDOnStructuredLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "text", Output: buf})

	WithLogID(ForComponent(base, "ProtocolExecutor"), "log-7").Debug("request %d", 3)

	if want := "logid=log-7"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if want := "msg=\"request 3\""; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}

func TestFromContextPrefixesLogID(t *testing.T) {
	rec := &recordingLogger{}
	ctx := id.WithLogID(context.Background(), "log-42")

	FromContext(ctx, rec).Info("run started")

	if len(rec.lines) != 1 || rec.lines[0] != "INFO logid=log-42 run started" {
		t.Fatalf("unexpected lines %v", rec.lines)
	}
}

func TestFromContextWithoutLogIDReturnsLogger(t *testing.T) {
	rec := &recordingLogger{}
	FromContext(context.Background(), rec).Error("boom")
	if len(rec.lines) != 1 || rec.lines[0] != "ERROR boom" {
		t.Fatalf("unexpected lines %v", rec.lines)
	}
}
