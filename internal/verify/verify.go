// Package verify orchestrates a verification run: route the target to an
// adapter, produce an evidence artifact, ask the judge for a verdict, and
// reduce it into completed/failed item sets.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/quenby/glimpse/internal/adapter"
	"github.com/quenby/glimpse/internal/judge"
	"github.com/quenby/glimpse/internal/log"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/pkg/capture"
)

// Result is the outcome of one verification run. Read-only after creation.
type Result struct {
	Success        bool     `json:"success"`
	CompletedItems []string `json:"completed_items"`
	FailedItems    []string `json:"failed_items"`
	UncertainItems []string `json:"uncertain_items,omitempty"`
	JudgeResponse  string   `json:"judge_response"`
	EvidencePath   string   `json:"evidence_path,omitempty"`
}

// CaptureFunc produces the evidence artifact for a descriptor. Injectable so
// the orchestration logic is testable without real adapters.
type CaptureFunc func(ctx context.Context, d task.Descriptor, opts capture.Options) capture.Result

// Orchestrator wires the router, adapters, and judge into the verify flow.
type Orchestrator struct {
	judge     judge.Judge
	events    *log.EventLog
	outputDir string
	project   string
	captureFn CaptureFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventLog records a verify event per run.
func WithEventLog(l *log.EventLog) Option {
	return func(o *Orchestrator) { o.events = l }
}

// WithOutputDir sets where evidence artifacts are written.
func WithOutputDir(dir string) Option {
	return func(o *Orchestrator) { o.outputDir = dir }
}

// WithProject sets the project name used in evidence file names.
func WithProject(name string) Option {
	return func(o *Orchestrator) { o.project = name }
}

// WithCaptureFunc replaces the adapter-backed capture step.
func WithCaptureFunc(fn CaptureFunc) Option {
	return func(o *Orchestrator) { o.captureFn = fn }
}

// New creates an Orchestrator backed by the given judge.
func New(j judge.Judge, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		judge:   j,
		project: "project",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.captureFn == nil {
		o.captureFn = adapterCapture
	}
	return o
}

// adapterCapture is the production capture step: select an adapter for the
// descriptor's router target, capture once, and release everything.
func adapterCapture(ctx context.Context, d task.Descriptor, opts capture.Options) capture.Result {
	a := adapter.Select(d.RouterTarget(), opts, opts.Want)
	defer a.EndSession()
	return a.Capture(ctx, d.RouterTarget(), &opts)
}

// Verify runs the full flow for one descriptor and checklist.
func (o *Orchestrator) Verify(ctx context.Context, d task.Descriptor, items []string, criteria string) Result {
	start := time.Now()
	result := o.verify(ctx, d, items, criteria)
	o.logRun(d, result, time.Since(start))
	return result
}

func (o *Orchestrator) verify(ctx context.Context, d task.Descriptor, items []string, criteria string) Result {
	// Unknown kind fails fast before any adapter or judge resources are
	// touched.
	if d.Kind == task.AppUnknown {
		return Result{
			Success:       false,
			FailedItems:   append([]string(nil), items...),
			JudgeResponse: "Error: could not determine application type from the task description",
		}
	}

	opts := capture.DefaultOptions()
	opts.OutputDir = o.outputDir
	opts.OutputName = fmt.Sprintf("%s_%s", o.project, time.Now().Format("20060102_150405"))
	opts.Want = wantFor(d.Kind)

	shot := o.captureFn(ctx, d, opts)
	if !shot.Success {
		return Result{
			Success:       false,
			FailedItems:   append([]string(nil), items...),
			JudgeResponse: "Error: capture failed: " + shot.Error,
			EvidencePath:  shot.Path,
		}
	}

	// Terminal output goes inline; image artifacts go by file reference,
	// never as embedded bytes.
	var inline string
	var evidence []string
	if shot.Type == capture.TypeText || shot.Type == capture.TypeANSI || shot.Type == capture.TypeDOM {
		inline = shot.Text
	} else {
		evidence = []string{shot.Path}
	}

	prompt := judge.VerifyPrompt(items, criteria, string(d.Kind), shot.Path, inline)

	response, err := o.judge.Evaluate(ctx, prompt, evidence)
	if err != nil {
		return Result{
			Success:       false,
			FailedItems:   append([]string(nil), items...),
			JudgeResponse: "Error: " + err.Error(),
			EvidencePath:  shot.Path,
		}
	}

	verdict, ok := judge.ParseVerdict(response)
	if !ok {
		// Fail closed: no guessing partial verdicts from prose.
		return Result{
			Success:       false,
			FailedItems:   append([]string(nil), items...),
			JudgeResponse: response,
			EvidencePath:  shot.Path,
		}
	}

	result := Result{
		JudgeResponse: response,
		EvidencePath:  shot.Path,
	}
	for _, item := range verdict.Items {
		switch item.Status {
		case judge.StatusCompleted:
			result.CompletedItems = append(result.CompletedItems, item.Task)
		case judge.StatusUncertain:
			result.UncertainItems = append(result.UncertainItems, item.Task)
			result.FailedItems = append(result.FailedItems, item.Task)
		default:
			result.FailedItems = append(result.FailedItems, item.Task)
		}
	}
	result.Success = verdict.AllCompleted && len(result.FailedItems) == 0
	return result
}

// VerifyTaskFile parses the task file and verifies its pending checklist
// items.
func (o *Orchestrator) VerifyTaskFile(ctx context.Context, path string) (Result, error) {
	f, err := task.ParseFile(path)
	if err != nil {
		return Result{}, err
	}
	items := f.Pending()
	if len(items) == 0 {
		items = f.AllItems()
	}
	result := o.Verify(ctx, f.Descriptor, items, f.Criteria)
	// Check off verified items in the task file. Write-back failures never
	// affect the verification outcome.
	_, _ = f.MarkCompleted(result.CompletedItems)
	return result, nil
}

func (o *Orchestrator) logRun(d task.Descriptor, r Result, elapsed time.Duration) {
	if o.events == nil {
		return
	}
	status := "fail"
	if r.Success {
		status = "success"
	}
	evt := log.NewEvent(log.EventTypeVerify, d.RouterTarget()).
		WithStatus(status).
		WithPath(r.EvidencePath).
		WithCount(len(r.CompletedItems) + len(r.FailedItems)).
		WithDuration(float64(elapsed.Milliseconds()))
	// Logging failures never affect the verification outcome.
	_ = o.events.Log(evt)
}

func wantFor(kind task.AppType) capture.Type {
	switch kind {
	case task.AppTUI:
		return capture.TypeANSI
	case task.AppCLI:
		return capture.TypeText
	default:
		return capture.TypeScreenshot
	}
}
