package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "container", "files")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if record["msg"] != "kept" || record["container"] != "files" {
		t.Errorf("unexpected record %v", record)
	}

	buf.Reset()
	logger, err = newLogger(&buf, LogConfig{Level: "debug", Format: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("tinted", "bucket", "assets")
	if !strings.Contains(buf.String(), "tinted") || !strings.Contains(buf.String(), "assets") {
		t.Errorf("expected text record, got %q", buf.String())
	}

	if _, err := newLogger(&buf, LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
