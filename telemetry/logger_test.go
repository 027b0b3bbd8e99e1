package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "server started", Field{Key: "addr", Value: "127.0.0.1:5000"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "server started" {
		t.Errorf("msg = %v, want 'server started'", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want 'info'", entry["level"])
	}
	if entry["addr"] != "127.0.0.1:5000" {
		t.Errorf("addr = %v", entry["addr"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Debug(context.Background(), "dropped")
	logger.Info(context.Background(), "dropped")
	logger.Warn(context.Background(), "kept")
	logger.Error(context.Background(), "kept")

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Errorf("wrote %d entries, want 2", lines)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithComponent("poller")

	logger.Info(context.Background(), "sampled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "poller" {
		t.Errorf("component = %v, want 'poller'", entry["component"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth", Field{Key: "token", Value: "hunter2"})

	if strings.Contains(buf.String(), "hunter2") {
		t.Error("sensitive value leaked into log output")
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Error("expected [REDACTED] marker")
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()

	// Must not panic and WithComponent must keep returning a usable logger.
	logger.WithComponent("x").Info(context.Background(), "ignored")
	logger.Error(context.Background(), "ignored")
}
