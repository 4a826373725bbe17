package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/quenby/glimpse/pkg/capture"
)

// procBackend captures the stdout/stderr of a shell command. Default variant
// for anything that is not a URL, window, or terminal-UI program.
type procBackend struct{}

// NewProc returns the process-output adapter.
func NewProc(defaults capture.Options) *Adapter {
	return newAdapter(&procBackend{}, defaults)
}

func (p *procBackend) canHandle(string) bool { return true }

func (p *procBackend) contentType() capture.Type { return capture.TypeText }

func (p *procBackend) startSession(context.Context, string, capture.Options) error { return nil }

func (p *procBackend) release() {}

func (p *procBackend) doCapture(ctx context.Context, target string, opts capture.Options) capture.Result {
	command := strings.TrimPrefix(target, "cli:")
	if strings.TrimSpace(command) == "" {
		return capture.Failure(capture.TypeText, errNotFound("empty command"))
	}

	if opts.WaitBefore > 0 {
		time.Sleep(opts.WaitBefore)
	}

	transcript, exitCode, duration, timedOut, err := runCommand(ctx, command, opts.Timeout)
	if err != nil {
		return capture.Failure(capture.TypeText, err.Error())
	}

	path, perr := outputPath(opts, ".txt")
	if perr != nil {
		return capture.Failure(capture.TypeText, errInternal(perr))
	}
	if werr := os.WriteFile(path, []byte(transcript), 0o644); werr != nil {
		return capture.Failure(capture.TypeText, errInternal(werr))
	}

	result := capture.Result{
		Success:   !timedOut && exitCode == 0,
		Type:      capture.TypeText,
		Path:      path,
		Text:      transcript,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"command":          command,
			"exit_code":        strconv.Itoa(exitCode),
			"duration_seconds": fmt.Sprintf("%.2f", duration.Seconds()),
		},
	}
	if timedOut {
		result.Error = errTimeout(opts.Timeout)
		result.Metadata["exit_code"] = ""
	} else if exitCode != 0 {
		result.Error = fmt.Sprintf("command exited with code %d", exitCode)
	}
	return result
}

// runCommand executes the command under the shell with a hard timeout,
// keeping whatever output was produced when the deadline fires.
func runCommand(ctx context.Context, command string, timeout time.Duration) (transcript string, exitCode int, duration time.Duration, timedOut bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration = time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return timeoutTranscript(stdout.String(), stderr.String(), duration), 0, duration, true, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The shell itself could not be started.
			return "", 0, duration, false, fmt.Errorf("%s", errNoMechanism(runErr.Error()))
		}
	}

	return transcriptText(stdout.String(), stderr.String(), exitCode, duration), exitCode, duration, false, nil
}

func transcriptText(stdout, stderr string, exitCode int, duration time.Duration) string {
	var parts []string
	if stdout != "" {
		parts = append(parts, "--- STDOUT ---", stdout)
	}
	if stderr != "" {
		parts = append(parts, "\n--- STDERR ---", stderr)
	}
	parts = append(parts,
		fmt.Sprintf("\n--- EXIT CODE: %d ---", exitCode),
		fmt.Sprintf("--- DURATION: %.2fs ---", duration.Seconds()),
	)
	return strings.Join(parts, "\n")
}

func timeoutTranscript(stdout, stderr string, duration time.Duration) string {
	parts := []string{"--- TIMEOUT ---"}
	if stdout != "" {
		parts = append(parts, "--- PARTIAL STDOUT ---", stdout)
	}
	if stderr != "" {
		parts = append(parts, "--- PARTIAL STDERR ---", stderr)
	}
	parts = append(parts, fmt.Sprintf("\n--- TIMED OUT AFTER: %.2fs ---", duration.Seconds()))
	return strings.Join(parts, "\n")
}

// doEvent interprets a small event vocabulary for processes: "complete" runs
// to completion, "output" additionally checks that the selector text appears
// in the transcript, "timeout" runs with a short deadline given in seconds.
// Anything else degrades to a plain capture.
func (p *procBackend) doEvent(ctx context.Context, target, event, selector string, opts capture.Options) capture.Result {
	switch event {
	case "output":
		if selector == "" {
			break
		}
		result := p.doCapture(ctx, target, opts)
		if result.Success {
			if result.Metadata == nil {
				result.Metadata = map[string]string{}
			}
			result.Metadata["expected"] = selector
			if strings.Contains(result.Text, selector) {
				result.Metadata["output_check"] = "found"
			} else {
				result.Metadata["output_check"] = "not_found"
				result.Success = false
				result.Error = fmt.Sprintf("expected output %q not found", selector)
			}
		}
		result.Event = "output:" + selector
		return result

	case "timeout":
		seconds := 5.0
		if selector != "" {
			if parsed, err := strconv.ParseFloat(selector, 64); err == nil && parsed > 0 {
				seconds = parsed
			}
		}
		opts.Timeout = time.Duration(seconds * float64(time.Second))
		result := p.doCapture(ctx, target, opts)
		result.Event = fmt.Sprintf("timeout:%gs", seconds)
		return result
	}

	result := p.doCapture(ctx, target, opts)
	result.Event = event
	return result
}
