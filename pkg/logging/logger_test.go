package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	if err := l.Info(CategorySession, "session_open", "new connection", map[string]any{"user": "alice"}); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := l.Session("abc-123", "session_close", "client disconnected"); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if first.Category != CategorySession || first.EventType != "session_open" {
		t.Errorf("unexpected event: %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if second.SessionID != "abc-123" {
		t.Errorf("session id not recorded: %+v", second)
	}
}

func TestMinLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	if err := l.Debug(CategoryTool, "dispatch", "ignored", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("debug event should be filtered at default level")
	}

	l.SetMinLevel(LevelDebug)
	if err := l.Debug(CategoryTool, "dispatch", "kept", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("debug event should be written after lowering min level")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	if err := l.Info(CategoryServer, "start", "ok", nil); err != nil {
		t.Errorf("nil logger should no-op, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil logger close should no-op, got %v", err)
	}
}
