// Package judge talks to an external LLM evaluator and parses its structured
// verdicts. The evaluator is a black box: requests are free text referencing
// evidence artifacts, responses are free text expected to carry one fenced
// JSON block. Responses that do not match the schema fail closed.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Judge sends a prompt to an external evaluator and returns its raw text
// response. Evidence paths point at image or markup artifacts the evaluator
// should consult; transports decide whether to pass them by reference or
// load them.
type Judge interface {
	Evaluate(ctx context.Context, prompt string, evidence []string) (string, error)
}

// Item statuses a verdict can assign.
const (
	StatusCompleted    = "COMPLETED"
	StatusNotCompleted = "NOT_COMPLETED"
	StatusUncertain    = "UNCERTAIN"
)

// ItemVerdict is the judged outcome of one checklist item.
type ItemVerdict struct {
	Task     string `json:"task"`
	Status   string `json:"status"`
	Evidence string `json:"evidence"`
}

// Verdict is the parsed form of a per-item evaluation response.
type Verdict struct {
	Items        []ItemVerdict `json:"results"`
	Summary      string        `json:"summary"`
	AllCompleted bool          `json:"all_completed"`
}

// DefaultTimeout bounds a single evaluator call.
const DefaultTimeout = 2 * time.Minute

// VerifyPrompt builds the checklist-verification request. Terminal captures
// go inline; image artifacts are referenced by path for the evaluator to
// read itself.
func VerifyPrompt(items []string, criteria, appType, evidencePath, inlineText string) string {
	var b strings.Builder

	b.WriteString("You are verifying whether tasks have been completed based on visual evidence.\n\n")
	fmt.Fprintf(&b, "## Application Type\n%s\n\n", strings.ToUpper(appType))

	b.WriteString("## Tasks to Verify\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n")

	if criteria != "" {
		fmt.Fprintf(&b, "## Acceptance Criteria\n%s\n\n", criteria)
	}

	b.WriteString(`## Instructions
Analyze the provided evidence and determine which tasks appear to be completed.

For each task, respond with:
- COMPLETED: if you can see evidence the task is done
- NOT_COMPLETED: if the task does not appear to be done
- UNCERTAIN: if you cannot determine from the visual evidence

After listing each task status, provide a brief summary.

Respond in this exact JSON format:
` + "```json" + `
{
  "results": [
    {"task": "task description", "status": "COMPLETED|NOT_COMPLETED|UNCERTAIN", "evidence": "what you observed"}
  ],
  "summary": "brief overall assessment",
  "all_completed": true/false
}
` + "```" + `
`)

	if inlineText != "" {
		fmt.Fprintf(&b, "\n## Terminal Output\n```\n%s\n```\n", inlineText)
	} else if evidencePath != "" {
		fmt.Fprintf(&b, "\nThe evidence screenshot is saved at: %s\nRead that image file before answering.\n", evidencePath)
	}

	return b.String()
}
