package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_AddsRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	ctx := ContextWithRunID(context.Background(), "run-123")
	WithFields(ctx, "file", "usage.csv").Info("import started")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-123"`) {
		t.Errorf("log line missing run_id: %s", out)
	}
	if !strings.Contains(out, `"file":"usage.csv"`) {
		t.Errorf("log line missing file field: %s", out)
	}
}

func TestFromContext_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	defer slog.SetDefault(prev)

	FromContext(context.Background()).Info("hello")

	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected run_id in %s", buf.String())
	}
}
