package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Level: "nope"}); err == nil {
		t.Error("New() accepted unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New() accepted unknown format")
	}
}

func TestLoggerRedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("selected key",
		"key", "AIzaSyA-very-secret-credential",
		"status", 200,
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output not JSON: %v", err)
	}
	got, _ := record["key"].(string)
	if strings.Contains(got, "very-secret") {
		t.Errorf("key attr = %q, raw credential leaked", got)
	}
	if !strings.Contains(got, "...") {
		t.Errorf("key attr = %q, want masked form", got)
	}
	if record["status"].(float64) != 200 {
		t.Errorf("status = %v, non-sensitive attr mangled", record["status"])
	}
}

func TestLoggerPassesThroughMaskedValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("event", "key", "AIza...4f2c")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output not JSON: %v", err)
	}
	if record["key"] != "AIza...4f2c" {
		t.Errorf("key = %v, masked value must pass through unchanged", record["key"])
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q, want empty", got)
	}
}

func TestSourceContext(t *testing.T) {
	ctx := WithSource(context.Background(), "operator")
	if got := GetSource(ctx); got != "operator" {
		t.Errorf("GetSource() = %q", got)
	}
}
