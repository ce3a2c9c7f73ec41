package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWriter_Format(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	t.Setenv("LOG_FORMAT", "text")
	var text bytes.Buffer
	log := NewWriter(&text)
	log.Info("dropped")
	log.Warn("kept", slog.String("k", "v"))
	if strings.Contains(text.String(), "dropped") {
		t.Errorf("info record should be filtered at warn level: %s", text.String())
	}
	if !strings.Contains(text.String(), "k=v") {
		t.Errorf("want text output, got %s", text.String())
	}

	t.Setenv("LOG_FORMAT", "")
	var js bytes.Buffer
	NewWriter(&js).Error("boom")
	if !strings.HasPrefix(js.String(), "{") {
		t.Errorf("want JSON output by default, got %s", js.String())
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should yield slog.Default()")
	}
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Error("FromContext should return the stored logger")
	}
}

func TestNew_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kbai.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "")

	New().Info("ingestion complete", slog.Int("added", 3))
	New().Info("second run")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 appended records, got %d: %s", len(lines), data)
	}
	if !strings.Contains(lines[0], `"added":3`) {
		t.Errorf("first record = %s", lines[0])
	}
}
