package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(buf, levelVar))
}

func TestConsoleHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("item claimed", String(FieldQueue, "research"), Int(FieldAttempt, 2))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Fatalf("missing level label: %q", line)
	}
	if !strings.Contains(line, "item claimed") {
		t.Fatalf("missing message: %q", line)
	}
	if !strings.Contains(line, "queue=research") || !strings.Contains(line, "attempt=2") {
		t.Fatalf("missing attributes: %q", line)
	}
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf), "sweeper")

	logger.Warn("claimed item overdue")

	line := buf.String()
	if !strings.Contains(line, "sweeper: claimed item overdue") {
		t.Fatalf("component not promoted to prefix: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not appear as attribute: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Error("push failed", Error(errors.New("disk full: 12 MB free")))

	if !strings.Contains(buf.String(), `error="disk full: 12 MB free"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}
