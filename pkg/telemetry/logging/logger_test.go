package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer) *Logger {
	t.Helper()
	l, err := New(Config{Level: "debug", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLogger_RedactsSensitiveKey(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf)

	l.Info("authenticated", "api_key", "sk-abcdef123456")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["api_key"] == "sk-abcdef123456" {
		t.Errorf("expected api_key to be redacted, got %v", decoded["api_key"])
	}
}

func TestLogger_RedactsBearerTokenInString(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf)

	l.Info("forwarding", "header", "Bearer sk-live-1234567890")

	if strings.Contains(buf.String(), "sk-live-1234567890") {
		t.Errorf("expected bearer token to be redacted from output, got %s", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %s", buf.String())
	}

	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("expected warn line to be written")
	}
}

func TestLogger_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "bogus"}); err == nil {
		t.Error("expected error for invalid level")
	}
}
