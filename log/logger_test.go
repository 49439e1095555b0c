package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("secstore", Warn, &buf)

	l.Info("dropped %d", 1)
	l.Warn("kept %d", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("Info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "kept 2") || !strings.Contains(out, "[secstore]") {
		t.Errorf("Expected warn line with name, got %q", out)
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("secstore", Debug, &buf).Named("meta")

	l.Debug("rebuild")
	if !strings.Contains(buf.String(), "[secstore/meta]") {
		t.Errorf("Expected nested name, got %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("secstore", Debug, &buf)
	l.JSON = true

	l.Error("backend %s down", "bolt")

	var entry logEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry.Level != "ERROR" || entry.Message != "backend bolt down" || entry.Service != "secstore" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
}

func TestLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("", Debug, &buf)

	code := -1
	l.exit = func(c int) { code = c }
	l.Fatal("boom")

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestParse(t *testing.T) {
	if lvl, err := Parse("warn"); err != nil || lvl != Warn {
		t.Errorf("Parse(warn) = %v, %v", lvl, err)
	}
	if _, err := Parse("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
