package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-items/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-items/internal/item"
	"github.com/nerrad567/gray-logic-items/internal/scene"
	"github.com/nerrad567/gray-logic-items/internal/scheduler"
)

// *Logger is handed straight to the domain packages.
var (
	_ item.Logger      = (*Logger)(nil)
	_ scheduler.Logger = (*Logger)(nil)
	_ scene.Logger     = (*Logger)(nil)
)

func TestNew_Outputs(t *testing.T) {
	for _, out := range []string{"stdout", "stderr", "discard", "none", ""} {
		t.Run(out, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: "info", Format: "json", Output: out}, "1.0.0")
			if logger == nil {
				t.Fatal("New() returned nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_DefaultFieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test-version", &buf)
	logger.Component("scene").Info("scene applied", "item", "living.scene", "state", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]any{
		"msg":       "scene applied",
		"item":      "living.scene",
		"state":     float64(2),
		"service":   ServiceName,
		"version":   "test-version",
		"component": "scene",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestLogger_WithDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(config.LoggingConfig{Format: "text"}, "v", &buf)
	child := parent.With("plugin", "mqtt")
	if child == parent {
		t.Fatal("With() returned the parent")
	}

	parent.Info("from parent")
	if strings.Contains(buf.String(), "plugin=mqtt") {
		t.Errorf("parent entry carries child attrs: %q", buf.String())
	}
	buf.Reset()
	child.Info("from child")
	if !strings.Contains(buf.String(), "plugin=mqtt") {
		t.Errorf("child entry missing attrs: %q", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)
	logger.Debug("debug hidden")
	logger.Info("info hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("entries below warn were written: %q", output)
	}
	if !strings.Contains(output, "shown") {
		t.Error("warn entry missing")
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
