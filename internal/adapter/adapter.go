// Package adapter implements the polymorphic capture contract: one backend
// per target kind (browser session, headless browser process, native window,
// tmux pane, plain process output) behind a uniform Adapter type that owns
// session state and capture history.
package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/quenby/glimpse/pkg/capture"
)

// backend is the variant-specific half of the capture contract. Backends
// return results, never panic for expected failure modes, and keep their own
// external resources behind an idempotent release.
type backend interface {
	// doCapture performs one capture of current state.
	doCapture(ctx context.Context, target string, opts capture.Options) capture.Result

	// doEvent performs an action then captures. Backends that cannot act
	// degrade to doCapture.
	doEvent(ctx context.Context, target, event, selector string, opts capture.Options) capture.Result

	// startSession opens a persistent capture context sized from opts.
	// Backends without a meaningful session return nil without acquiring
	// anything.
	startSession(ctx context.Context, target string, opts capture.Options) error

	// release frees every external resource the backend holds. Must be
	// idempotent and safe after partial initialization.
	release()

	// canHandle reports whether this backend understands the target.
	// String inspection only.
	canHandle(target string) bool

	// contentType is the capture type this backend produces.
	contentType() capture.Type
}

// Adapter wraps a backend with session bookkeeping and capture history.
// At most one session per instance; calls are serialized by the caller, the
// internal mutex only guards history against stray concurrent reads.
type Adapter struct {
	be       backend
	defaults capture.Options

	mu      sync.Mutex
	history []capture.Result
	active  bool
}

func newAdapter(be backend, defaults capture.Options) *Adapter {
	return &Adapter{be: be, defaults: defaults.Normalize()}
}

// CanHandle reports whether the adapter understands the target. Pure string
// inspection, no process or network calls.
func (a *Adapter) CanHandle(target string) bool {
	return a.be.canHandle(target)
}

// ContentType returns the capture type this adapter produces.
func (a *Adapter) ContentType() capture.Type {
	return a.be.contentType()
}

// Capture performs one capture of the target's current state. Expected
// failures (missing binary, unreachable target, timeout) come back as a
// failed Result, never as a panic.
func (a *Adapter) Capture(ctx context.Context, target string, opts *capture.Options) (out capture.Result) {
	defer func() { a.record(out) }()
	defer a.guard(&out)
	out = a.be.doCapture(ctx, target, a.options(opts))
	return out
}

// CaptureOnEvent performs an action (interpreted per variant) then captures.
func (a *Adapter) CaptureOnEvent(ctx context.Context, target, event, selector string, opts *capture.Options) (out capture.Result) {
	defer func() { a.record(out) }()
	defer a.guard(&out)
	out = a.be.doEvent(ctx, target, event, selector, a.options(opts))
	return out
}

// CaptureSequence executes events in order, recording every result exactly
// once. An event with StopOnFail set short-circuits the remainder when its
// capture fails.
func (a *Adapter) CaptureSequence(ctx context.Context, target string, events []capture.Event, opts *capture.Options) []capture.Result {
	results := make([]capture.Result, 0, len(events))
	o := a.options(opts)

	for _, ev := range events {
		name := ev.Event
		if name == "" {
			name = "screenshot"
		}

		r := func() (out capture.Result) {
			defer a.guard(&out)
			return a.be.doEvent(ctx, target, name, ev.Selector, o)
		}()
		a.record(r)
		results = append(results, r)

		if !r.Success && ev.StopOnFail {
			break
		}
		if ev.WaitAfter > 0 {
			time.Sleep(ev.WaitAfter)
		}
	}
	return results
}

// StartSession opens a persistent capture context for the target. Calling it
// while a session is active is an error.
func (a *Adapter) StartSession(ctx context.Context, target string, opts *capture.Options) error {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return fmt.Errorf("adapter: session already active")
	}
	a.mu.Unlock()

	if err := a.be.startSession(ctx, target, a.options(opts)); err != nil {
		// Partial setup is released by the backend before it returns.
		return err
	}

	a.mu.Lock()
	a.active = true
	a.mu.Unlock()
	return nil
}

// EndSession releases every resource the backend created, even when no
// session was started, a one-shot capture path may have left something
// behind, and returns the accumulated history. Idempotent.
func (a *Adapter) EndSession() []capture.Result {
	a.be.release()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
	out := make([]capture.Result, len(a.history))
	copy(out, a.history)
	return out
}

// History returns a copy of the capture history for the current session.
func (a *Adapter) History() []capture.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]capture.Result, len(a.history))
	copy(out, a.history)
	return out
}

// ClearHistory drops all recorded captures.
func (a *Adapter) ClearHistory() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// SessionActive reports whether a persistent session is open.
func (a *Adapter) SessionActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Adapter) options(opts *capture.Options) capture.Options {
	if opts == nil {
		return a.defaults
	}
	return opts.Normalize()
}

func (a *Adapter) record(r capture.Result) {
	a.mu.Lock()
	a.history = append(a.history, r)
	a.mu.Unlock()
}

// guard converts a panic inside a backend into a failed result. Boundary of
// last resort per the error-propagation policy; expected failures never
// reach it.
func (a *Adapter) guard(out *capture.Result) {
	if rec := recover(); rec != nil {
		*out = capture.Failure(a.be.contentType(), errInternal(fmt.Errorf("%v", rec)))
	}
}

// Failure taxonomy. Every backend maps its failures onto one of these
// message shapes so callers can distinguish them without a type switch.

func errNoMechanism(what string) string {
	return "no capture mechanism available: " + what
}

func errNotFound(what string) string {
	return "target not found: " + what
}

func errTimeout(after time.Duration) string {
	return fmt.Sprintf("timeout after %s", after)
}

func errInternal(err error) string {
	return "internal error: " + err.Error()
}

// outputPath resolves the file a capture should be written to, creating the
// output directory as needed.
func outputPath(opts capture.Options, ext string) (string, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Join(".glimpse", "captures")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := opts.OutputName
	if name == "" {
		name = fmt.Sprintf("capture_%d", time.Now().UnixMilli())
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(dir, name), nil
}
