package log

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewEventDefaults(t *testing.T) {
	start := time.Now().UnixMilli()
	evt := NewEvent(EventTypeVerify, "http://localhost:3000")

	if evt.Version != EventVersion {
		t.Fatalf("expected version %d, got %d", EventVersion, evt.Version)
	}
	if evt.TimestampMs < start {
		t.Fatalf("expected TimestampMs >= %d, got %d", start, evt.TimestampMs)
	}
	if evt.EventID == "" || !strings.HasPrefix(evt.EventID, "evt-") {
		t.Fatalf("expected evt- prefixed event id, got %q", evt.EventID)
	}
	if evt.Type != EventTypeVerify {
		t.Fatalf("expected type %q, got %q", EventTypeVerify, evt.Type)
	}
	if evt.Target != "http://localhost:3000" {
		t.Fatalf("expected target set, got %q", evt.Target)
	}
}

func TestEventLogSchemaFields(t *testing.T) {
	dir := t.TempDir()
	logger := NewEventLog(dir)

	evt := Event{
		Type:    EventTypeFixAttempt,
		Target:  "src/App.tsx",
		Status:  "success",
		Path:    "/tmp/evidence.png",
		Attempt: 2,
		Error:   "",
	}

	if err := logger.Log(evt); err != nil {
		t.Fatalf("log event: %v", err)
	}

	payload, err := os.ReadFile(dir + "/events.jsonl")
	if err != nil {
		t.Fatalf("read events.jsonl: %v", err)
	}
	line := strings.TrimSpace(string(payload))
	if line == "" {
		t.Fatalf("expected one jsonl line")
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}

	// Required fields
	for _, key := range []string{"v", "ts_ms", "event_id", "type", "target"} {
		if _, ok := got[key]; !ok {
			t.Fatalf("missing required field %q in %v", key, got)
		}
	}
	// Optional fields included when set
	for _, key := range []string{"status", "path", "attempt"} {
		if _, ok := got[key]; !ok {
			t.Fatalf("missing expected field %q in %v", key, got)
		}
	}
	// Zero-valued optional fields stay out of the line
	if _, ok := got["error"]; ok {
		t.Fatalf("unexpected empty error field present in %v", got)
	}

	if v, ok := got["v"].(float64); !ok || int(v) != EventVersion {
		t.Fatalf("expected v=%d, got %v", EventVersion, got["v"])
	}
	if _, ok := got["ts_ms"].(float64); !ok {
		t.Fatalf("expected ts_ms numeric, got %T", got["ts_ms"])
	}
	if id, ok := got["event_id"].(string); !ok || !strings.HasPrefix(id, "evt-") {
		t.Fatalf("expected evt- prefixed event_id, got %v", got["event_id"])
	}
}

func TestEventBuilders(t *testing.T) {
	evt := NewEvent(EventTypeCapture, "tui:htop").
		WithStatus("fail").
		WithError("timeout after 30s").
		WithDuration(30000).
		WithCount(3).
		WithPath("/tmp/cap.txt").
		WithAttempt(1)

	if evt.Status != "fail" || evt.Error != "timeout after 30s" {
		t.Fatalf("builder fields not applied: %+v", evt)
	}
	if evt.DurationMs != 30000 || evt.Count != 3 || evt.Attempt != 1 {
		t.Fatalf("numeric builder fields not applied: %+v", evt)
	}
	if evt.Path != "/tmp/cap.txt" {
		t.Fatalf("path not applied: %+v", evt)
	}
}
