package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter("syncer", zapcore.DebugLevel, &buf).With(map[string]any{"round_id": "r-1"})

	l.Info("round started", map[string]any{"revision": 3})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "round started" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["component"] != "syncer" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["round_id"] != "r-1" {
		t.Errorf("round_id = %v", entry["round_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["revision"] != float64(3) {
		t.Errorf("fields = %v", entry["fields"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter("build", zapcore.WarnLevel, &buf)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)

	if strings.Count(buf.String(), "\n") != 1 || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := newLoggerWithWriter("build", zapcore.InfoLevel, &first)
	l.WithOutput(&second).Info("redirected", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received output: %q", first.String())
	}
	if !strings.Contains(second.String(), "redirected") {
		t.Errorf("new writer missing entry: %q", second.String())
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel(""); err != nil || lvl != zapcore.InfoLevel {
		t.Errorf("ParseLevel(\"\") = %v, %v", lvl, err)
	}
	if lvl, err := ParseLevel("debug"); err != nil || lvl != zapcore.DebugLevel {
		t.Errorf("ParseLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", map[string]any{"k": "v"})
	l.Sugar().Infof("discarded %d", 1)
}
