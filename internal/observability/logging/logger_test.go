package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestProductionLoggerEmitsJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "metrodms-api", "info", false)

	logger.Info("document stored", "document_id", 42)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["service"] != "metrodms-api" {
		t.Fatalf("missing service attribute: %v", line)
	}
	if line["msg"] != "document stored" {
		t.Fatalf("unexpected message: %v", line)
	}
}

func TestDevelopmentLoggerEmitsText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "metrodms-api", "debug", true)

	logger.Debug("checking storage root")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("development logger should not emit JSON: %s", out)
	}
	if !strings.Contains(out, "checking storage root") {
		t.Fatalf("message missing from output: %s", out)
	}
}

func TestLevelFiltersDebugByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "metrodms-worker", "garbage-level", false)

	logger.Debug("suppressed")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "suppressed") {
		t.Fatalf("debug line must be filtered at info: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn line missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
