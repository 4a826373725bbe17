// Package todo inspects todo lists for phase boundaries and decides when a
// verification run is warranted. Pure: no I/O, no judge calls; it only
// gates whether the orchestrator is invoked.
package todo

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Status values mirroring the external todo system.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Phase classifies a todo item by its work stage.
type Phase string

const (
	PhaseImplementation Phase = "implementation"
	PhaseTesting        Phase = "testing"
	PhaseVerification   Phase = "verification"
	PhaseBuild          Phase = "build"
	PhaseDeploy         Phase = "deploy"
	PhaseReview         Phase = "review"
	PhaseUnknown        Phase = "unknown"
)

// Item is one todo entry.
type Item struct {
	Content string `json:"content"`
	Status  Status `json:"status"`
}

// verificationKeywords flag items whose completion should trigger a
// verification run.
var verificationKeywords = []string{
	"verify", "test", "check", "validate", "confirm", "ensure",
	"build", "run", "deploy", "launch", "render", "display",
	"ui", "visual", "screenshot", "appearance", "layout",
}

// phaseKeywords map item text onto a phase. Evaluated in order; the first
// matching phase wins.
var phaseKeywords = []struct {
	phase    Phase
	keywords []string
}{
	{PhaseImplementation, []string{"implement", "create", "add", "write", "code", "develop"}},
	{PhaseTesting, []string{"test", "spec", "unit", "integration", "e2e"}},
	{PhaseVerification, []string{"verify", "check", "validate", "confirm"}},
	{PhaseBuild, []string{"build", "compile", "bundle", "package"}},
	{PhaseDeploy, []string{"deploy", "release", "publish", "ship"}},
	{PhaseReview, []string{"review", "pr", "merge", "commit"}},
}

var highPriorityPhases = []Phase{PhaseBuild, PhaseTesting, PhaseDeploy}

// DetectPhase derives an item's phase from its text.
func DetectPhase(content string) Phase {
	lower := strings.ToLower(content)
	for _, entry := range phaseKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.phase
			}
		}
	}
	return PhaseUnknown
}

// RequiresVerification reports whether completing the item warrants a
// verification run.
func RequiresVerification(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range verificationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Decision is the outcome of evaluating todo state: whether a verification
// run is warranted, plus the context a report needs.
type Decision struct {
	ShouldVerify bool     `json:"should_verify"`
	Phase        Phase    `json:"phase"`
	Progress     int      `json:"progress"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Evaluate wraps ShouldVerify with the phase and percent-complete context.
func Evaluate(items []Item) Decision {
	ok, reasons := ShouldVerify(items)
	d := Decision{ShouldVerify: ok, Phase: PhaseUnknown, Reasons: reasons}
	if len(items) == 0 {
		return d
	}

	done := 0
	var lastCompleted, firstInProgress string
	for _, item := range items {
		switch item.Status {
		case StatusCompleted:
			done++
			lastCompleted = item.Content
		case StatusInProgress:
			if firstInProgress == "" {
				firstInProgress = item.Content
			}
		}
	}
	d.Progress = done * 100 / len(items)
	if firstInProgress != "" {
		d.Phase = DetectPhase(firstInProgress)
	} else if lastCompleted != "" {
		d.Phase = DetectPhase(lastCompleted)
	}
	return d
}

// ShouldVerify evaluates every trigger rule and collects all matching
// reasons, not just the first.
func ShouldVerify(items []Item) (bool, []string) {
	if len(items) == 0 {
		return false, nil
	}

	var completed, inProgress []Item
	for _, item := range items {
		switch item.Status {
		case StatusCompleted:
			completed = append(completed, item)
		case StatusInProgress:
			inProgress = append(inProgress, item)
		}
	}

	// Current phase comes from the in-progress item, or failing that the
	// most recently completed one.
	current := PhaseUnknown
	if len(inProgress) > 0 {
		current = DetectPhase(inProgress[0].Content)
	} else if len(completed) > 0 {
		current = DetectPhase(completed[len(completed)-1].Content)
	}

	var reasons []string

	// Rule 1: every item in the current phase is complete.
	if total, done := phaseCounts(items, current); total > 0 && done == total {
		reasons = append(reasons, fmt.Sprintf("phase %q completed", current))
	}

	// Rule 2: a verification-requiring item completed.
	for _, item := range completed {
		if RequiresVerification(item.Content) {
			reasons = append(reasons, "verification todo completed: "+truncate(item.Content, 50))
		}
	}

	// Rule 3: a high-priority phase is fully complete.
	for _, phase := range highPriorityPhases {
		if total, done := phaseCounts(items, phase); total > 0 && done == total {
			reasons = append(reasons, fmt.Sprintf("high-priority phase %q completed", phase))
		}
	}

	// Rule 4: everything is done.
	if len(completed) == len(items) {
		reasons = append(reasons, "all todos completed, final verification")
	}

	return len(reasons) > 0, reasons
}

func phaseCounts(items []Item, phase Phase) (total, done int) {
	for _, item := range items {
		if DetectPhase(item.Content) != phase {
			continue
		}
		total++
		if item.Status == StatusCompleted {
			done++
		}
	}
	return total, done
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ParseJSON extracts todo items from a TodoWrite-style JSON document:
// {"todos": [{"content": ..., "status": ...}, ...]}.
func ParseJSON(doc string) []Item {
	var items []Item
	gjson.Get(doc, "todos").ForEach(func(_, value gjson.Result) bool {
		status := Status(value.Get("status").String())
		switch status {
		case StatusPending, StatusInProgress, StatusCompleted:
		default:
			status = StatusPending
		}
		items = append(items, Item{
			Content: value.Get("content").String(),
			Status:  status,
		})
		return true
	})
	return items
}

// ParseMarkdown extracts todo items from bracket-checkbox task lists.
func ParseMarkdown(text string) []Item {
	var items []Item
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- [ ] "):
			items = append(items, Item{Content: strings.TrimSpace(trimmed[6:]), Status: StatusPending})
		case strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
			items = append(items, Item{Content: strings.TrimSpace(trimmed[6:]), Status: StatusCompleted})
		}
	}
	return items
}
