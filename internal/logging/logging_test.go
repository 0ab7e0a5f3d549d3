package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/griddispatch/internal/logging"
)

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("job submitted", slog.String("job_id", "job_1"))

	out := buf.String()
	if !strings.Contains(out, "job submitted") || !strings.Contains(out, "job_id=job_1") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter(slog.LevelInfo, "JSON", &buf)

	logger.Info("job submitted", slog.String("job_id", "job_1"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "job submitted" || entry["job_id"] != "job_1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLoggerWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
