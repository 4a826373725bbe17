package adapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quenby/glimpse/pkg/capture"
)

// settleDelay is the pause between an action and its capture, so the program
// is not captured mid-redraw.
const settleDelay = 300 * time.Millisecond

// tuiBackend runs a terminal program inside a detached tmux session on a
// private socket and captures the pane content with ANSI escapes intact.
// The rendered-screenshot alternative for terminal programs lives in the
// window backend.
type tuiBackend struct {
	cleanup cleanupStack

	socket  string
	command string
	running bool
}

// NewTUI returns the tmux-backed terminal capture adapter.
func NewTUI(defaults capture.Options) *Adapter {
	return newAdapter(&tuiBackend{}, defaults)
}

func (t *tuiBackend) canHandle(target string) bool {
	return Classify(target) == capture.KindTerminal
}

func (t *tuiBackend) contentType() capture.Type { return capture.TypeANSI }

func (t *tuiBackend) startSession(ctx context.Context, target string, opts capture.Options) error {
	if _, err := exec.LookPath("tmux"); err != nil {
		return fmt.Errorf("adapter: %s", errNoMechanism("tmux not installed"))
	}

	command := strings.TrimPrefix(target, "tui:")
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("adapter: %s", errNotFound("empty terminal command"))
	}

	t.socket = tmuxSocketPath()
	opts = opts.Normalize()
	if _, err := t.tmux(ctx, "new-session", "-d",
		"-x", strconv.Itoa(opts.Width/8), "-y", strconv.Itoa(opts.Height/16),
		"--", "sh", "-c", command); err != nil {
		t.release()
		return fmt.Errorf("adapter: start terminal session: %w", err)
	}

	t.cleanup.push(func() {
		_, _ = t.tmuxNoCtx("kill-server")
		_ = os.Remove(t.socket)
	})
	t.command = command
	t.running = true
	return nil
}

func (t *tuiBackend) release() {
	t.cleanup.run()
	t.running = false
}

func (t *tuiBackend) doCapture(ctx context.Context, target string, opts capture.Options) capture.Result {
	oneShot := !t.running
	if oneShot {
		if err := t.startSession(ctx, target, opts); err != nil {
			return capture.Failure(capture.TypeANSI, err.Error())
		}
		defer t.release()
	}

	if opts.WaitBefore > 0 {
		time.Sleep(opts.WaitBefore)
	}

	return t.capturePane(ctx, opts, "")
}

func (t *tuiBackend) doEvent(ctx context.Context, target, event, selector string, opts capture.Options) capture.Result {
	if !t.running {
		if err := t.startSession(ctx, target, opts); err != nil {
			return capture.Failure(capture.TypeANSI, err.Error())
		}
	}

	label := event
	switch event {
	case "key":
		if selector != "" {
			if _, err := t.tmux(ctx, "send-keys", "-t", "0", selector); err != nil {
				return capture.Failure(capture.TypeANSI, errInternal(err))
			}
			label = "key:" + selector
		}
	case "type", "input":
		if selector != "" {
			if _, err := t.tmux(ctx, "send-keys", "-t", "0", "-l", selector); err != nil {
				return capture.Failure(capture.TypeANSI, errInternal(err))
			}
			label = "type:" + selector
		}
	case "wait":
		seconds := 1.0
		if selector != "" {
			if parsed, err := strconv.ParseFloat(selector, 64); err == nil && parsed > 0 {
				seconds = parsed
			}
		}
		time.Sleep(time.Duration(seconds * float64(time.Second)))
		label = fmt.Sprintf("wait:%gs", seconds)
	}

	time.Sleep(settleDelay)

	result := t.capturePane(ctx, opts, label)
	return result
}

// capturePane reads the visible pane content with escape sequences and
// writes it to the output file.
func (t *tuiBackend) capturePane(ctx context.Context, opts capture.Options, event string) capture.Result {
	content, err := t.tmux(ctx, "capture-pane", "-p", "-e", "-t", "0")
	if err != nil {
		return capture.Failure(capture.TypeANSI, errNotFound("tmux pane: "+err.Error()))
	}

	path, perr := outputPath(opts, ".txt")
	if perr != nil {
		return capture.Failure(capture.TypeANSI, errInternal(perr))
	}
	if werr := os.WriteFile(path, []byte(content), 0o644); werr != nil {
		return capture.Failure(capture.TypeANSI, errInternal(werr))
	}

	return capture.Result{
		Success:   true,
		Type:      capture.TypeANSI,
		Path:      path,
		Text:      content,
		Timestamp: time.Now(),
		Event:     event,
		Metadata: map[string]string{
			"command": t.command,
		},
	}
}

// tmux executes a tmux command against the private socket and returns
// trimmed output.
func (t *tuiBackend) tmux(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-S", t.socket}, args...)
	cmd := exec.CommandContext(ctx, "tmux", full...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("tmux %v: %w", args, err)
	}
	return output, nil
}

func (t *tuiBackend) tmuxNoCtx(args ...string) (string, error) {
	return t.tmux(context.Background(), args...)
}

// tmuxSocketPath builds a unique socket path so concurrent harness runs do
// not share a tmux server.
func tmuxSocketPath() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		n := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(n >> (8 * i))
		}
	}
	return filepath.Join(os.TempDir(), "glimpse-"+hex.EncodeToString(buf)+".sock")
}
