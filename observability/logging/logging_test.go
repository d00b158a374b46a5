package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "lulod.log")
	logger, closer := Setup(Options{Service: "lulod", Env: "test", Level: "debug", File: logFile, Output: &buf})
	logger.Debug("tx committed", slog.Uint64("slot", 3))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode line %q: %v", buf.String(), err)
	}
	if line["message"] != "tx committed" || line["severity"] != "DEBUG" || line["service"] != "lulod" || line["env"] != "test" {
		t.Fatalf("unexpected line %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", line)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("tx committed")) {
		t.Fatalf("log file missing line: %s", data)
	}
}

func TestParseLevelAndMask(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
	if MaskValue("token") != RedactedValue || MaskValue(" ") != " " {
		t.Fatalf("unexpected masking")
	}
}
