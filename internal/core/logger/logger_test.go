package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithComponentAndContext(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug, "json")

	WithComponent("keepalive").Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["component"] != "keepalive" {
		t.Errorf("expected component=keepalive, got %v", rec["component"])
	}

	buf.Reset()
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	InfoContext(ctx, "with request")
	rec = nil
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["request_id"] != "req-1" {
		t.Errorf("expected request_id=req-1, got %v", rec["request_id"])
	}
}
