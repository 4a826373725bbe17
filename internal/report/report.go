// Package report renders verification, repair, and baseline results as
// human-readable text for CLI output.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quenby/glimpse/internal/autofix"
	"github.com/quenby/glimpse/internal/baseline"
	"github.com/quenby/glimpse/internal/todo"
	"github.com/quenby/glimpse/internal/verify"
)

const rule = "============================================================"
const thinRule = "------------------------------------------------------------"

// Verification renders a verify.Result as a sectioned text report.
func Verification(r verify.Result) string {
	var lines []string
	lines = append(lines, rule)
	lines = append(lines, "VERIFICATION REPORT")
	lines = append(lines, rule)
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("- Success: %v", r.Success))
	lines = append(lines, fmt.Sprintf("- Completed: %d", len(r.CompletedItems)))
	lines = append(lines, fmt.Sprintf("- Failed: %d", len(r.FailedItems)))

	if len(r.CompletedItems) > 0 {
		lines = append(lines, "", "### Completed Items:")
		for _, item := range r.CompletedItems {
			lines = append(lines, fmt.Sprintf("  [OK] %s", item))
		}
	}
	if len(r.FailedItems) > 0 {
		lines = append(lines, "", "### Failed Items:")
		for _, item := range r.FailedItems {
			lines = append(lines, fmt.Sprintf("  [!!] %s", item))
		}
	}
	if len(r.UncertainItems) > 0 {
		lines = append(lines, "", "### Uncertain Items:")
		for _, item := range r.UncertainItems {
			lines = append(lines, fmt.Sprintf("  [??] %s", item))
		}
	}
	if r.EvidencePath != "" {
		lines = append(lines, "", fmt.Sprintf("### Evidence: %s", r.EvidencePath))
	}
	lines = append(lines, "", rule)
	return strings.Join(lines, "\n")
}

// TriggerCheck renders a todo-state decision, optionally followed by the
// verification it triggered.
func TriggerCheck(d todo.Decision, v *verify.Result) string {
	var lines []string
	lines = append(lines, rule)
	lines = append(lines, "VERIFICATION REPORT (Todo-Triggered)")
	lines = append(lines, rule)

	lines = append(lines, "", "## Todo State")
	lines = append(lines, fmt.Sprintf("- Phase: %s", d.Phase))
	lines = append(lines, fmt.Sprintf("- Progress: %d%%", d.Progress))
	triggered := "No"
	if d.ShouldVerify {
		triggered = "Yes"
	}
	lines = append(lines, fmt.Sprintf("- Verification Triggered: %s", triggered))

	if len(d.Reasons) > 0 {
		lines = append(lines, "", "### Triggers:")
		for _, reason := range d.Reasons {
			lines = append(lines, fmt.Sprintf("  - %s", reason))
		}
	}

	if v != nil {
		lines = append(lines, "", "## Visual Verification Results")
		lines = append(lines, fmt.Sprintf("- Success: %v", v.Success))
		lines = append(lines, fmt.Sprintf("- Completed: %d", len(v.CompletedItems)))
		lines = append(lines, fmt.Sprintf("- Failed: %d", len(v.FailedItems)))
		if len(v.CompletedItems) > 0 {
			lines = append(lines, "", "### Completed Items:")
			for _, item := range v.CompletedItems {
				lines = append(lines, fmt.Sprintf("  [OK] %s", item))
			}
		}
		if len(v.FailedItems) > 0 {
			lines = append(lines, "", "### Failed Items:")
			for _, item := range v.FailedItems {
				lines = append(lines, fmt.Sprintf("  [!!] %s", item))
			}
		}
		if v.EvidencePath != "" {
			lines = append(lines, "", fmt.Sprintf("### Evidence: %s", v.EvidencePath))
		}
	} else {
		lines = append(lines, "", "## Visual Verification")
		lines = append(lines, "- Not run (todo state did not trigger)")
	}

	lines = append(lines, "", rule)
	return strings.Join(lines, "\n")
}

// Batch renders a verify.BatchResult. When detailed is set, per-capture
// verdicts are included after the summary counts.
func Batch(r verify.BatchResult, detailed bool) string {
	var lines []string
	lines = append(lines, rule)
	lines = append(lines, fmt.Sprintf("BATCH VERIFICATION: %d captures", r.Total))
	lines = append(lines, rule)

	lines = append(lines, "")
	if r.Passed > 0 {
		lines = append(lines, fmt.Sprintf("  PASSED:    %d/%d", r.Passed, r.Total))
	}
	if r.Failed > 0 {
		lines = append(lines, fmt.Sprintf("  FAILED:    %d/%d", r.Failed, r.Total))
	}
	if r.Uncertain > 0 {
		lines = append(lines, fmt.Sprintf("  UNCERTAIN: %d/%d", r.Uncertain, r.Total))
	}

	if len(r.Issues) > 0 {
		lines = append(lines, "", "Issues Found:")
		for _, issue := range r.Issues {
			lines = append(lines, fmt.Sprintf("  - %s", issue))
		}
	}

	if detailed && len(r.Verdicts) > 0 {
		lines = append(lines, "", thinRule, "DETAILED RESULTS", thinRule)
		for i, v := range r.Verdicts {
			lines = append(lines, "", fmt.Sprintf("### Capture %d: %s", i+1, filepath.Base(v.Path)))
			lines = append(lines, fmt.Sprintf("Status: %s", strings.ToUpper(v.Status)))
			if v.Evidence != "" {
				lines = append(lines, fmt.Sprintf("Evidence: %s", v.Evidence))
			}
			if len(v.Issues) > 0 {
				lines = append(lines, "Issues:")
				for _, issue := range v.Issues {
					lines = append(lines, fmt.Sprintf("  - %s", issue))
				}
			}
		}
	}

	lines = append(lines, "", thinRule)
	if r.Summary != "" {
		lines = append(lines, r.Summary)
	}
	if r.Recommendation != "" {
		lines = append(lines, fmt.Sprintf("Recommendation: %s", r.Recommendation))
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

// AutoFix renders a repair-loop result, attempts in chronological order.
func AutoFix(r autofix.Result) string {
	lines := []string{"## Auto-Fix Result", ""}

	status := "ISSUES REMAIN"
	if r.AllFixed {
		status = "ALL FIXED"
	}
	lines = append(lines, fmt.Sprintf("**Status**: %s", status))

	if len(r.IssuesFound) > 0 {
		lines = append(lines, "", "### Issues Found")
		for _, issue := range r.IssuesFound {
			lines = append(lines, fmt.Sprintf("- %s", issue))
		}
	}

	if len(r.Attempts) > 0 {
		lines = append(lines, "", "### Fix Attempts")
		for i, a := range r.Attempts {
			outcome := "failed"
			if a.Success {
				outcome = "fixed"
			}
			lines = append(lines, "", fmt.Sprintf("#### Attempt %d (%s)", i+1, outcome))
			lines = append(lines, fmt.Sprintf("**Issue**: %s", a.Issue))
			loc := "?"
			if a.Line > 0 {
				loc = fmt.Sprintf("%d", a.Line)
			}
			lines = append(lines, fmt.Sprintf("**File**: %s:%s", a.File, loc))
			if a.ApplyError != "" {
				lines = append(lines, fmt.Sprintf("**Apply Error**: %s", a.ApplyError))
			}
			if a.OriginalCode != "" && a.FixedCode != "" {
				lines = append(lines, "**Change**:", "```diff")
				for _, l := range strings.Split(a.OriginalCode, "\n") {
					lines = append(lines, "- "+l)
				}
				for _, l := range strings.Split(a.FixedCode, "\n") {
					lines = append(lines, "+ "+l)
				}
				lines = append(lines, "```")
			}
		}
	}

	if len(r.Evidence) > 0 {
		lines = append(lines, "", "### Evidence")
		for _, e := range r.Evidence {
			lines = append(lines, fmt.Sprintf("- %s", e))
		}
	}

	return strings.Join(lines, "\n")
}

// BaselineList renders saved baselines as a markdown table.
func BaselineList(entries []baseline.Entry) string {
	if len(entries) == 0 {
		return "No baselines saved."
	}

	lines := []string{"## Saved Baselines", ""}
	lines = append(lines, "| Name | Type | Created | Description |")
	lines = append(lines, "|------|------|---------|-------------|")
	for _, e := range entries {
		created := "Unknown"
		if len(e.Created) >= 10 {
			created = e.Created[:10]
		}
		desc := e.Description
		if desc == "" {
			desc = "-"
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |", e.Name, e.AppType, created, desc))
	}
	return strings.Join(lines, "\n")
}

// Comparison renders a baseline comparison verdict.
func Comparison(r baseline.ComparisonResult) string {
	lines := []string{"## Comparison Result", ""}

	status := "MISMATCH"
	if r.Matches {
		status = "MATCH"
	}
	lines = append(lines, fmt.Sprintf("**Status**: %s", status))
	lines = append(lines, fmt.Sprintf("**Similarity**: %.1f%%", r.SimilarityScore*100))
	lines = append(lines, fmt.Sprintf("**Baseline**: %s", r.BaselinePath))
	lines = append(lines, fmt.Sprintf("**Current**: %s", r.CurrentPath))

	if len(r.Differences) > 0 {
		lines = append(lines, "", "### Differences Found")
		for _, d := range r.Differences {
			lines = append(lines, fmt.Sprintf("- %s", d))
		}
	}
	if len(r.SuggestedFixes) > 0 {
		lines = append(lines, "", "### Suggested Fixes")
		for _, f := range r.SuggestedFixes {
			lines = append(lines, fmt.Sprintf("- %s", f))
		}
	}
	if r.Analysis != "" {
		lines = append(lines, "", "### Analysis", r.Analysis)
	}
	return strings.Join(lines, "\n")
}
