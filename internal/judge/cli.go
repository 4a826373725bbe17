package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CLIConfig configures the command-line evaluator transport.
type CLIConfig struct {
	// Command is the evaluator binary. Defaults to "claude".
	Command string

	// Args are prepended before the prompt flag. Defaults to text output.
	Args []string

	// Model passed via --model when non-empty.
	Model string

	// Timeout per call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// CLI invokes an evaluator command-line tool with the prompt and returns its
// stdout. The tool reads referenced evidence files itself, so the working
// directory is set next to the first evidence artifact.
type CLI struct {
	cfg CLIConfig
}

// NewCLI returns the command-line transport.
func NewCLI(cfg CLIConfig) *CLI {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if cfg.Args == nil {
		cfg.Args = []string{"--output-format", "text"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &CLI{cfg: cfg}
}

func (c *CLI) Evaluate(ctx context.Context, prompt string, evidence []string) (string, error) {
	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		return "", fmt.Errorf("judge: %s not found in PATH", c.cfg.Command)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	args := append([]string{"-p", prompt}, c.cfg.Args...)
	if c.cfg.Model != "" {
		args = append(args, "--model", c.cfg.Model)
	}

	cmd := exec.CommandContext(runCtx, c.cfg.Command, args...)
	if len(evidence) > 0 {
		cmd.Dir = filepath.Dir(evidence[0])
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("judge: %s timed out after %s", c.cfg.Command, c.cfg.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("exit code %d", exitErr.ExitCode())
			}
			return "", fmt.Errorf("judge: %s failed: %s", c.cfg.Command, msg)
		}
		return "", fmt.Errorf("judge: run %s: %w", c.cfg.Command, err)
	}

	response := strings.TrimSpace(stdout.String())
	if response == "" {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("judge: %s returned no output: %s", c.cfg.Command, msg)
		}
		return "", fmt.Errorf("judge: %s returned no output", c.cfg.Command)
	}
	return response, nil
}
