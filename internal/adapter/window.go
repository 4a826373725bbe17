package adapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/quenby/glimpse/pkg/capture"
)

// windowBackend captures native application windows. When given a command it
// launches the program on a private Xvfb display, locates its window with
// xdotool, and screenshots it with ImageMagick's import. When given only a
// window title it searches the current display instead.
type windowBackend struct {
	cleanup cleanupStack

	display string
	proc    *exec.Cmd
	title   string
	winID   string
	running bool
}

// NewWindow returns the native-window capture adapter.
func NewWindow(defaults capture.Options) *Adapter {
	return newAdapter(&windowBackend{}, defaults)
}

func (w *windowBackend) canHandle(target string) bool {
	kind := Classify(target)
	return kind == capture.KindWindow || kind == capture.KindTerminal
}

func (w *windowBackend) contentType() capture.Type { return capture.TypeScreenshot }

// parseWindowTarget splits a window target into an optional launch command
// and an optional window title. Forms:
//
//	window:Title       attach to an existing window by title
//	gui:cmd            launch cmd, find its window by pid
//	gui:cmd|Title      launch cmd, find its window by title
//	app.exe            launch, find by pid
func parseWindowTarget(target string) (command, title string) {
	switch {
	case strings.HasPrefix(target, "window:"):
		return "", strings.TrimPrefix(target, "window:")
	case strings.HasPrefix(target, "gui:"):
		rest := strings.TrimPrefix(target, "gui:")
		if cmd, t, ok := strings.Cut(rest, "|"); ok {
			return cmd, t
		}
		return rest, ""
	case strings.HasPrefix(target, "tui:"):
		// Terminal program requested as a rendered screenshot: run it
		// inside xterm on the private display.
		return "xterm -e " + strings.TrimPrefix(target, "tui:"), ""
	default:
		return target, ""
	}
}

func (w *windowBackend) startSession(ctx context.Context, target string, _ capture.Options) error {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return fmt.Errorf("adapter: %s", errNoMechanism("xdotool not installed"))
	}
	if _, err := exec.LookPath("import"); err != nil {
		return fmt.Errorf("adapter: %s", errNoMechanism("imagemagick not installed"))
	}

	command, title := parseWindowTarget(target)
	w.title = title

	if command == "" {
		// Attach to an existing window on the ambient display.
		w.display = os.Getenv("DISPLAY")
		id, err := w.findWindow(ctx, title, 0)
		if err != nil {
			return fmt.Errorf("adapter: %s", errNotFound("window "+title))
		}
		w.winID = id
		w.running = true
		return nil
	}

	if _, err := exec.LookPath("Xvfb"); err != nil {
		return fmt.Errorf("adapter: %s", errNoMechanism("Xvfb not installed"))
	}

	display, stop, err := startXvfb()
	if err != nil {
		return fmt.Errorf("adapter: start xvfb: %w", err)
	}
	w.display = display
	w.cleanup.push(stop)

	proc := exec.Command("sh", "-c", command)
	proc.Env = append(os.Environ(), "DISPLAY="+display)
	if err := proc.Start(); err != nil {
		w.cleanup.run()
		return fmt.Errorf("adapter: %s", errNoMechanism("launch "+command+": "+err.Error()))
	}
	w.proc = proc
	w.cleanup.push(func() {
		_ = proc.Process.Kill()
		_, _ = proc.Process.Wait()
	})

	id, err := w.findWindow(ctx, title, proc.Process.Pid)
	if err != nil {
		w.cleanup.run()
		return fmt.Errorf("adapter: %s", errNotFound("window for "+command))
	}
	w.winID = id
	w.running = true
	return nil
}

func (w *windowBackend) release() {
	w.cleanup.run()
	w.proc = nil
	w.winID = ""
	w.running = false
}

// findWindow polls xdotool until the program has mapped a window.
func (w *windowBackend) findWindow(ctx context.Context, title string, pid int) (string, error) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		args := []string{"search", "--onlyvisible"}
		if title != "" {
			args = append(args, "--name", title)
		} else {
			args = append(args, "--pid", strconv.Itoa(pid))
		}
		cmd := exec.CommandContext(ctx, "xdotool", args...)
		cmd.Env = append(os.Environ(), "DISPLAY="+w.display)
		out, err := cmd.Output()
		if err == nil {
			ids := strings.Fields(string(out))
			if len(ids) > 0 {
				return ids[0], nil
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return "", fmt.Errorf("no window appeared")
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func (w *windowBackend) doCapture(ctx context.Context, target string, opts capture.Options) capture.Result {
	oneShot := !w.running
	if oneShot {
		if err := w.startSession(ctx, target, opts); err != nil {
			return capture.Failure(capture.TypeScreenshot, err.Error())
		}
		defer w.release()
	}

	if opts.WaitBefore > 0 {
		time.Sleep(opts.WaitBefore)
	}

	return w.screenshot(ctx, opts, "")
}

func (w *windowBackend) doEvent(ctx context.Context, target, event, selector string, opts capture.Options) capture.Result {
	if !w.running {
		if err := w.startSession(ctx, target, opts); err != nil {
			return capture.Failure(capture.TypeScreenshot, err.Error())
		}
	}

	label := event
	switch event {
	case "key":
		if selector != "" {
			cmd := exec.CommandContext(ctx, "xdotool", "key", "--window", w.winID, selector)
			cmd.Env = append(os.Environ(), "DISPLAY="+w.display)
			if err := cmd.Run(); err != nil {
				return capture.Failure(capture.TypeScreenshot, errInternal(err))
			}
			label = "key:" + selector
		}
	case "type", "input":
		if selector != "" {
			cmd := exec.CommandContext(ctx, "xdotool", "type", "--window", w.winID, selector)
			cmd.Env = append(os.Environ(), "DISPLAY="+w.display)
			if err := cmd.Run(); err != nil {
				return capture.Failure(capture.TypeScreenshot, errInternal(err))
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

	result := w.screenshot(ctx, opts, label)
	return result
}

func (w *windowBackend) screenshot(ctx context.Context, opts capture.Options, event string) capture.Result {
	path, perr := outputPath(opts, ".png")
	if perr != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(perr))
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "import", "-window", w.winID, path)
	cmd.Env = append(os.Environ(), "DISPLAY="+w.display)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return capture.Failure(capture.TypeScreenshot, errTimeout(opts.Timeout))
		}
		return capture.Failure(capture.TypeScreenshot, errInternal(fmt.Errorf("import: %w", err)))
	}

	return capture.Result{
		Success:   true,
		Type:      capture.TypeScreenshot,
		Path:      path,
		Timestamp: time.Now(),
		Event:     event,
		Metadata: map[string]string{
			"window_id": w.winID,
			"display":   w.display,
		},
	}
}

// startXvfb boots a virtual framebuffer on a free display number and returns
// the display name and a stop function.
func startXvfb() (string, func(), error) {
	for n := 90; n < 100; n++ {
		display := fmt.Sprintf(":%d", n)
		lock := fmt.Sprintf("/tmp/.X%d-lock", n)
		if _, err := os.Stat(lock); err == nil {
			continue
		}
		cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
		if err := cmd.Start(); err != nil {
			return "", nil, fmt.Errorf("xvfb: %w", err)
		}
		// Give the server a moment to bind the display.
		time.Sleep(500 * time.Millisecond)
		stop := func() {
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}
		return display, stop, nil
	}
	return "", nil, fmt.Errorf("xvfb: no free display")
}
