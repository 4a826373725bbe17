// Package capture defines the shared value types exchanged between capture
// adapters, the verification orchestrator, and the stores.
package capture

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Type describes the content kind of a capture.
type Type string

const (
	TypeScreenshot Type = "screenshot" // image file (PNG)
	TypeText       Type = "text"       // plain text output
	TypeANSI       Type = "ansi"       // terminal output with ANSI codes
	TypeDOM        Type = "dom"        // HTML/DOM snapshot
)

// Kind classifies a target string. Classification is total: every input maps
// to exactly one kind.
type Kind string

const (
	KindWeb      Kind = "web"
	KindWindow   Kind = "window"
	KindTerminal Kind = "terminal"
	KindShell    Kind = "shell"
)

// Options configures a single capture call. Immutable per call; adapters
// supply defaults for zero fields.
type Options struct {
	OutputDir  string        `json:"output_dir,omitempty"`
	OutputName string        `json:"output_name,omitempty"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	WaitBefore time.Duration `json:"wait_before"`
	WaitAfter  time.Duration `json:"wait_after"`
	Timeout    time.Duration `json:"timeout"`
	FullPage   bool          `json:"full_page"`
	Selector   string        `json:"selector,omitempty"`
	Want       Type          `json:"want,omitempty"` // requested content type; empty means the adapter default
}

// DefaultOptions returns the options used when the caller supplies none.
func DefaultOptions() Options {
	return Options{
		Width:      1280,
		Height:     720,
		WaitBefore: 500 * time.Millisecond,
		Timeout:    30 * time.Second,
	}
}

// Normalize fills zero fields from the defaults so invariants
// (timeout > 0, width/height > 0) hold for every capture call.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	return o
}

// Event is one entry in a capture sequence: perform an action, then capture.
type Event struct {
	Event      string        `json:"event"`              // click, navigate, input, wait, hover, scroll, screenshot, ...
	Selector   string        `json:"selector,omitempty"` // interpretation depends on the event
	StopOnFail bool          `json:"stop_on_fail,omitempty"`
	WaitAfter  time.Duration `json:"wait_after,omitempty"`
}

// Result is the outcome of one capture call. Immutable after creation.
// Exactly one of Path or Text is the content location when Success is true;
// Error is non-empty iff Success is false.
type Result struct {
	Success   bool              `json:"success"`
	Type      Type              `json:"capture_type"`
	Path      string            `json:"content_path,omitempty"`
	Text      string            `json:"content_text,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Event     string            `json:"event,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Failure builds a failed Result with the given content type and reason.
func Failure(t Type, reason string) Result {
	return Result{
		Success:   false,
		Type:      t,
		Timestamp: time.Now(),
		Error:     reason,
	}
}

// Validate checks the Result location invariant.
func (r Result) Validate() error {
	if r.Success {
		if r.Path == "" && r.Text == "" {
			return errors.New("capture: successful result has no content location")
		}
		if r.Error != "" {
			return errors.New("capture: successful result carries an error")
		}
		return nil
	}
	if r.Error == "" {
		return errors.New("capture: failed result has no error message")
	}
	return nil
}

// GenerateID returns a cap- prefixed 12-hex identifier for stored captures.
func GenerateID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to time-based bytes if crypto/rand fails.
		n := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(n >> (8 * i))
		}
	}
	return "cap-" + hex.EncodeToString(buf)
}
