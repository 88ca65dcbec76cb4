package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func restoreDefaults(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestSetupHonoursLevelAndAttrs(t *testing.T) {
	restoreDefaults(t)
	var buf bytes.Buffer
	logger, err := Setup("stakingd", Options{
		Environment: "test",
		Level:       "WARN",
		Network:     "devnet",
		ProgramID:   "stk1program",
		Output:      &buf,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", slog.String("dsn", "postgres://u:pw@db/x"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %s", len(lines), buf.String())
	}
	rec := lines[0]
	want := map[string]string{
		"message":    "kept",
		"severity":   "WARN",
		"service":    "stakingd",
		"env":        "test",
		"network":    "devnet",
		"program_id": "stk1program",
		"dsn":        "postgres://u:xxxxx@db/x",
	}
	for key, value := range want {
		if rec[key] != value {
			t.Fatalf("%s: got %v want %q", key, rec[key], value)
		}
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", rec)
	}
}

func TestSetupBridgesStdlibLogger(t *testing.T) {
	restoreDefaults(t)
	var buf bytes.Buffer
	if _, err := Setup("stakingd", Options{Level: "debug", Output: &buf}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	slog.Debug("via default")
	log.Print("via stdlib")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected two records, got %d", len(lines))
	}
	if lines[1]["message"] != "via stdlib" || lines[1]["severity"] != "INFO" {
		t.Fatalf("unexpected bridged record %v", lines[1])
	}
	if _, ok := lines[0]["program_id"]; ok {
		t.Fatalf("blank program id should be omitted")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		" Debug ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v want %v", raw, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := Setup("stakingd", Options{Level: "verbose"}); err == nil {
		t.Fatalf("expected setup to reject unknown level")
	}
}
