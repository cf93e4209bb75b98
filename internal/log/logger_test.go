package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level)
	l.SetOutput(&buf)
	l.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLoggerFiltersByLevel(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)
	l.Info("hidden", nil)
	l.Warn("shown", nil)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[0].Message != "shown" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[0].Timestamp != "2025-01-02T03:04:05Z" {
		t.Fatalf("unexpected timestamp %q", entries[0].Timestamp)
	}
}

func TestLogSampleFailedIncludesStageAndError(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)
	l.LogSampleFailed("run-1", "fetching", errors.New("timeout"), true)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	f := entries[0].Fields
	if f["run_id"] != "run-1" || f["stage"] != "fetching" || f["error"] != "timeout" || f["recorded"] != true {
		t.Fatalf("unexpected fields %v", f)
	}
}

func TestLogHistoryWriteLevels(t *testing.T) {
	l, buf := newTestLogger(LevelInfo)
	l.LogHistoryWrite("h.json", 3, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected successful writes at debug level, got %q", buf.String())
	}
	l.LogHistoryWrite("h.json", 3, errors.New("disk full"))
	entries := decodeLines(t, buf)
	if len(entries) != 1 || entries[0].Level != "ERROR" {
		t.Fatalf("expected one error entry, got %+v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
