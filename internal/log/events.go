// Package log writes append-only JSONL activity records for harness runs.
package log

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventVersion is the current event schema version.
const EventVersion = 1

// Event captures one harness activity record.
type Event struct {
	Version     int    `json:"v"`        // Schema version, always 1
	TimestampMs int64  `json:"ts_ms"`    // Unix milliseconds
	EventID     string `json:"event_id"` // "evt-abc123"
	Type        string `json:"type"`     // "capture", "verify", "fix_attempt", ...
	Target      string `json:"target,omitempty"`
	Status      string `json:"status,omitempty"` // "success", "fail", "timeout", "skipped"

	// Extended fields for debugging
	Path       string  `json:"path,omitempty"`    // evidence artifact path
	Error      string  `json:"error,omitempty"`   // error message if applicable
	DurationMs float64 `json:"duration_ms,omitempty"`
	Count      int     `json:"count,omitempty"`   // item/capture count for batch operations
	Attempt    int     `json:"attempt,omitempty"` // fix attempt number
}

// WithPath sets the evidence artifact path.
func (e Event) WithPath(path string) Event {
	e.Path = path
	return e
}

// WithError sets the error field.
func (e Event) WithError(err string) Event {
	e.Error = err
	return e
}

// WithStatus sets the status field.
func (e Event) WithStatus(status string) Event {
	e.Status = status
	return e
}

// WithDuration sets the duration field in milliseconds.
func (e Event) WithDuration(durationMs float64) Event {
	e.DurationMs = durationMs
	return e
}

// WithCount sets the count field for batch operations.
func (e Event) WithCount(count int) Event {
	e.Count = count
	return e
}

// WithAttempt sets the fix attempt number.
func (e Event) WithAttempt(attempt int) Event {
	e.Attempt = attempt
	return e
}

// Event type constants.
const (
	EventTypeCapture         = "capture"
	EventTypeVerify          = "verify"
	EventTypeBatchVerify     = "batch_verify"
	EventTypeFixAttempt      = "fix_attempt"
	EventTypeBaselineSaved   = "baseline_saved"
	EventTypeBaselineCompare = "baseline_compare"
	EventTypeStoreAdded      = "store_added"
	EventTypeWatch           = "watch"
)

// GenerateEventID returns an evt- prefixed 8-hex identifier.
func GenerateEventID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		n := time.Now().UnixNano()
		buf[0] = byte(n)
		buf[1] = byte(n >> 8)
		buf[2] = byte(n >> 16)
		buf[3] = byte(n >> 24)
	}
	return "evt-" + hex.EncodeToString(buf)
}

// NewEvent creates a new event with defaults filled in.
func NewEvent(eventType, target string) Event {
	return Event{
		Version:     EventVersion,
		TimestampMs: time.Now().UnixMilli(),
		EventID:     GenerateEventID(),
		Type:        eventType,
		Target:      target,
	}
}

// EventLog writes append-only JSONL logs.
type EventLog struct {
	path string
	mu   sync.Mutex
}

func NewEventLog(logDir string) *EventLog {
	return &EventLog{path: filepath.Join(logDir, "events.jsonl")}
}

func (l *EventLog) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Version == 0 {
		event.Version = EventVersion
	}
	if event.TimestampMs == 0 {
		event.TimestampMs = time.Now().UnixMilli()
	}
	if event.EventID == "" {
		event.EventID = GenerateEventID()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
