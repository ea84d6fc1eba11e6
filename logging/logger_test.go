package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

var _ Logger = (*LoomLogger)(nil)
var _ Logger = NoOpLogger{}

func TestLoomLogger_LevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	logger.Info("should be dropped")
	logger.Warn("should appear", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("info line leaked through warn gate: %s", out)
	}
	if !strings.Contains(out, "should appear") || !strings.Contains(out, "key=value") {
		t.Errorf("warn line missing or unstructured: %s", out)
	}
}

func TestLoomLogger_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	logger.WithComponent("runner").WithSession("s1", "run-1").Info("turn complete", "events", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["component"] != "runner" || entry["session_id"] != "s1" || entry["run_id"] != "run-1" {
		t.Errorf("context attributes missing: %#v", entry)
	}
	if entry["events"] != float64(3) {
		t.Errorf("kv argument missing: %#v", entry)
	}
}

func TestLoomLogger_WithReturnsCopy(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})
	_ = base.WithComponent("child")

	base.Info("plain")
	if strings.Contains(buf.String(), "component") {
		t.Errorf("child attributes leaked into base logger: %s", buf.String())
	}
}
