// Package autofix runs the bounded repair loop: verify, ask the judge for a
// code fix, apply it verbatim, and re-verify, until success or the attempt
// bound is exhausted.
package autofix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quenby/glimpse/internal/judge"
	"github.com/quenby/glimpse/internal/log"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/internal/verify"
)

// Policy defaults. Configurable, not hard-wired: callers can tighten or
// loosen the loop per project.
const (
	DefaultMaxAttempts         = 3
	DefaultConfidenceThreshold = 0.5
	DefaultHotReloadPause      = 2 * time.Second

	maxProposalFiles     = 5
	maxProposalFileBytes = 10000
)

// Config tunes the repair loop.
type Config struct {
	MaxAttempts         int
	ConfidenceThreshold float64
	HotReloadPause      time.Duration

	// ProjectRoot anchors relative file paths in proposals.
	ProjectRoot string
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         DefaultMaxAttempts,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		HotReloadPause:      DefaultHotReloadPause,
		ProjectRoot:         ".",
	}
}

// Verifier runs one verification pass. Satisfied by verify.Orchestrator.
type Verifier interface {
	Verify(ctx context.Context, d task.Descriptor, items []string, criteria string) verify.Result
}

// Attempt records one fix attempt, applied or not.
type Attempt struct {
	Issue        string         `json:"issue"`
	File         string         `json:"file"`
	Line         int            `json:"line,omitempty"`
	OriginalCode string         `json:"original_code"`
	FixedCode    string         `json:"fixed_code"`
	Confidence   float64        `json:"confidence"`
	Applied      bool           `json:"applied"`
	ApplyError   string         `json:"apply_error,omitempty"`
	Success      bool           `json:"success"`
	Verification *verify.Result `json:"verification,omitempty"`
}

// Result is the terminal report of a repair loop: every attempt and every
// evidence artifact, in chronological order.
type Result struct {
	IssuesFound       []string      `json:"issues_found"`
	Attempts          []Attempt     `json:"attempts"`
	AllFixed          bool          `json:"all_fixed"`
	FinalVerification verify.Result `json:"final_verification"`
	Evidence          []string      `json:"evidence"`
}

func (r *Result) addEvidence(path string) {
	if path != "" {
		r.Evidence = append(r.Evidence, path)
	}
}

// Fixer drives the loop.
type Fixer struct {
	cfg      Config
	judge    judge.Judge
	verifier Verifier
	events   *log.EventLog
	pause    func(time.Duration)
}

// Option configures a Fixer.
type Option func(*Fixer)

// WithEventLog records a fix_attempt event per attempt.
func WithEventLog(l *log.EventLog) Option {
	return func(f *Fixer) { f.events = l }
}

// WithPause replaces the hot-reload sleep, for tests.
func WithPause(fn func(time.Duration)) Option {
	return func(f *Fixer) { f.pause = fn }
}

// New creates a Fixer.
func New(cfg Config, j judge.Judge, v Verifier, opts ...Option) *Fixer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	f := &Fixer{cfg: cfg, judge: j, verifier: v, pause: time.Sleep}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes the repair loop for one descriptor and checklist.
// editedFiles lists recently-touched source files the judge should inspect.
func (f *Fixer) Run(ctx context.Context, d task.Descriptor, items []string, criteria string, editedFiles []string) Result {
	result := Result{}

	verification := f.verifier.Verify(ctx, d, items, criteria)
	result.addEvidence(verification.EvidencePath)

	if verification.Success {
		result.AllFixed = true
		result.FinalVerification = verification
		return result
	}

	result.IssuesFound = append(result.IssuesFound, verification.FailedItems...)
	if len(result.IssuesFound) == 0 {
		result.IssuesFound = []string{"verification failed, see evidence artifact"}
	}

	for len(result.Attempts) < f.cfg.MaxAttempts && !verification.Success {
		issueDesc := verification.JudgeResponse
		if issueDesc == "" {
			issueDesc = strings.Join(result.IssuesFound, "; ")
		}

		proposal, ok := f.propose(ctx, verification.EvidencePath, issueDesc, editedFiles)
		if !ok || proposal.File == "" {
			// No actionable proposal: abandon the loop.
			break
		}
		if proposal.Confidence < f.cfg.ConfidenceThreshold {
			// Low-confidence proposals are never applied.
			break
		}

		attempt := Attempt{
			Issue:        proposal.Issue,
			File:         proposal.File,
			Line:         proposal.Line,
			OriginalCode: proposal.OriginalCode,
			FixedCode:    proposal.FixedCode,
			Confidence:   proposal.Confidence,
		}

		if proposal.OriginalCode != "" && proposal.FixedCode != "" {
			applied, applyErr := f.applyFix(proposal.File, proposal.OriginalCode, proposal.FixedCode)
			attempt.Applied = applied
			if applyErr != nil {
				attempt.ApplyError = applyErr.Error()
			}

			if applied {
				f.pause(f.cfg.HotReloadPause)

				verification = f.verifier.Verify(ctx, d, items, criteria)
				result.addEvidence(verification.EvidencePath)
				v := verification
				attempt.Verification = &v
				attempt.Success = verification.Success
			}
		}

		result.Attempts = append(result.Attempts, attempt)
		f.logAttempt(len(result.Attempts), attempt)
	}

	result.AllFixed = verification.Success
	result.FinalVerification = verification
	return result
}

// propose asks the judge for a single file+span replacement.
func (f *Fixer) propose(ctx context.Context, evidencePath, issueDesc string, editedFiles []string) (judge.Proposal, bool) {
	prompt := f.proposalPrompt(evidencePath, issueDesc, editedFiles)

	var evidence []string
	if isImage(evidencePath) {
		evidence = []string{evidencePath}
	}

	response, err := f.judge.Evaluate(ctx, prompt, evidence)
	if err != nil {
		return judge.Proposal{}, false
	}
	return judge.ParseProposal(response)
}

func (f *Fixer) proposalPrompt(evidencePath, issueDesc string, editedFiles []string) string {
	var files strings.Builder
	count := 0
	for _, rel := range editedFiles {
		if count >= maxProposalFiles {
			break
		}
		full := filepath.Join(f.cfg.ProjectRoot, rel)
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		content := string(data)
		if len(content) > maxProposalFileBytes {
			content = content[:maxProposalFileBytes] + "\n... (truncated)"
		}
		fmt.Fprintf(&files, "\n### %s\n```\n%s\n```\n", rel, content)
		count++
	}

	var b strings.Builder
	b.WriteString("You are debugging a visual issue in a UI application.\n\n")
	fmt.Fprintf(&b, "## Issue Description\n%s\n\n", issueDesc)
	if evidencePath != "" {
		fmt.Fprintf(&b, "## Evidence\nThe capture showing the issue is at: %s\n\n", evidencePath)
	}
	if files.Len() > 0 {
		fmt.Fprintf(&b, "## Recently Edited Files\nThese files were recently edited and may contain the bug:\n%s\n", files.String())
	}
	b.WriteString(`## Task
1. Analyze the evidence to understand the visual issue
2. Identify which file and line contains the bug
3. Propose a specific code fix

Respond in this JSON format:
` + "```json" + `
{
  "issue_identified": "specific description of what's wrong",
  "root_cause": "why this is happening",
  "file_to_fix": "path/to/file",
  "line_number": 42,
  "original_code": "the exact code that needs changing",
  "fixed_code": "the corrected code",
  "confidence": 0.0,
  "explanation": "why this fix should work"
}
` + "```" + `

If you cannot determine a fix, set "file_to_fix" to null and "confidence" to 0.0.
`)
	return b.String()
}

// applyFix replaces the first verbatim occurrence of original in the file.
// A match found only after whitespace normalization is reported, never
// written back: normalized rewriting risks corrupting unrelated formatting.
func (f *Fixer) applyFix(file, original, fixed string) (bool, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.cfg.ProjectRoot, file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("autofix: read %s: %w", file, err)
	}
	content := string(data)

	if strings.Contains(content, original) {
		updated := strings.Replace(content, original, fixed, 1)
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			return false, fmt.Errorf("autofix: write %s: %w", file, err)
		}
		return true, nil
	}

	if strings.Contains(normalizeSpace(content), normalizeSpace(original)) {
		return false, fmt.Errorf("autofix: original code found only under whitespace normalization in %s", file)
	}
	return false, fmt.Errorf("autofix: original code not found in %s", file)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (f *Fixer) logAttempt(n int, a Attempt) {
	if f.events == nil {
		return
	}
	status := "fail"
	if a.Success {
		status = "success"
	} else if !a.Applied {
		status = "skipped"
	}
	_ = f.events.Log(log.NewEvent(log.EventTypeFixAttempt, a.File).
		WithStatus(status).
		WithAttempt(n).
		WithError(a.ApplyError))
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}
