package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quenby/glimpse/internal/log"
)

var fencedBatchJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Status of one capture inside a batch verdict.
const (
	BatchPass      = "pass"
	BatchFail      = "fail"
	BatchUncertain = "uncertain"
)

// CaptureVerdict is the judged outcome of one capture in a batch.
type CaptureVerdict struct {
	Path     string   `json:"path"`
	Status   string   `json:"status"`
	Evidence string   `json:"evidence,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// BatchResult aggregates a single-request verification of N captures.
type BatchResult struct {
	Total     int    `json:"total"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Uncertain int    `json:"uncertain"`

	Verdicts       []CaptureVerdict `json:"verdicts,omitempty"`
	Issues         []string         `json:"issues,omitempty"`
	Summary        string           `json:"summary"`
	Recommendation string           `json:"recommendation,omitempty"`
	RawResponse    string           `json:"raw_response,omitempty"`
}

// inlineLimit truncates text captures embedded in the batch prompt.
const inlineLimit = 2000

// VerifyBatch judges N capture artifacts in one request. An unparseable
// response marks every capture uncertain rather than dropping any.
func (o *Orchestrator) VerifyBatch(ctx context.Context, paths []string, items []string, criteria string) BatchResult {
	if len(paths) == 0 {
		return BatchResult{Summary: "no captures to verify"}
	}

	prompt := batchPrompt(paths, items, criteria)

	var evidence []string
	for _, path := range paths {
		if isImagePath(path) {
			evidence = append(evidence, path)
		}
	}

	response, err := o.judge.Evaluate(ctx, prompt, evidence)
	if err != nil {
		return allUncertain(paths, "Error: "+err.Error(), "")
	}

	result := parseBatchResponse(response, paths)
	o.logBatch(result)
	return result
}

func (o *Orchestrator) logBatch(r BatchResult) {
	if o.events == nil {
		return
	}
	status := BatchFail
	if r.Failed == 0 && r.Uncertain == 0 {
		status = BatchPass
	}
	_ = o.events.Log(log.NewEvent(log.EventTypeBatchVerify, "").
		WithStatus(status).
		WithCount(r.Total))
}

func batchPrompt(paths, items []string, criteria string) string {
	var b strings.Builder

	b.WriteString("You are verifying a batch of application captures against a checklist.\n\n")

	if len(items) > 0 {
		b.WriteString("## Tasks to Verify\n")
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	if criteria != "" {
		fmt.Fprintf(&b, "## Acceptance Criteria\n%s\n\n", criteria)
	}

	fmt.Fprintf(&b, `## Response Format
Respond with valid JSON in this format:
`+"```json"+`
{
  "summary": {
    "total": %d,
    "passed": 0,
    "failed": 0,
    "uncertain": 0,
    "issues": ["issues found across all captures"]
  },
  "details": [
    {"capture_index": 1, "status": "pass|fail|uncertain", "evidence": "what you observed", "issues": []}
  ],
  "recommendation": "brief recommendation for next steps"
}
`+"```"+`

## Capture Contents

`, len(paths))

	for i, path := range paths {
		if isImagePath(path) {
			fmt.Fprintf(&b, "Capture %d: [Image at %s]\n", i+1, path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(&b, "Capture %d: [Error reading %s]\n", i+1, path)
			continue
		}
		text := string(content)
		if len(text) > inlineLimit {
			text = text[:inlineLimit] + "\n... [truncated]"
		}
		fmt.Fprintf(&b, "Capture %d:\n```\n%s\n```\n", i+1, text)
	}

	return b.String()
}

func parseBatchResponse(response string, paths []string) BatchResult {
	doc := extractBatchJSON(response)
	if doc == "" || !gjson.Get(doc, "summary").Exists() {
		return allUncertain(paths, "Verification failed: could not parse response", response)
	}

	result := BatchResult{
		Total:          len(paths),
		Recommendation: gjson.Get(doc, "recommendation").String(),
		RawResponse:    response,
	}
	gjson.Get(doc, "summary.issues").ForEach(func(_, v gjson.Result) bool {
		result.Issues = append(result.Issues, v.String())
		return true
	})

	details := gjson.Get(doc, "details")
	if details.IsArray() {
		byIndex := make(map[int]CaptureVerdict, len(paths))
		details.ForEach(func(_, detail gjson.Result) bool {
			idx := int(detail.Get("capture_index").Int()) - 1
			if idx < 0 || idx >= len(paths) {
				return true
			}
			status := strings.ToLower(detail.Get("status").String())
			switch status {
			case BatchPass, BatchFail:
			default:
				status = BatchUncertain
			}
			verdict := CaptureVerdict{
				Path:     paths[idx],
				Status:   status,
				Evidence: detail.Get("evidence").String(),
			}
			detail.Get("issues").ForEach(func(_, issue gjson.Result) bool {
				verdict.Issues = append(verdict.Issues, issue.String())
				return true
			})
			byIndex[idx] = verdict
			return true
		})
		// Every capture gets a verdict; anything the response skipped is
		// uncertain, never dropped from the counts.
		for i, path := range paths {
			verdict, ok := byIndex[i]
			if !ok {
				verdict = CaptureVerdict{
					Path:     path,
					Status:   BatchUncertain,
					Evidence: "no verdict returned for this capture",
				}
			}
			result.Verdicts = append(result.Verdicts, verdict)
			switch verdict.Status {
			case BatchPass:
				result.Passed++
			case BatchFail:
				result.Failed++
			default:
				result.Uncertain++
			}
		}
	} else {
		result.Passed = int(gjson.Get(doc, "summary.passed").Int())
		result.Failed = int(gjson.Get(doc, "summary.failed").Int())
		result.Uncertain = int(gjson.Get(doc, "summary.uncertain").Int())
	}

	result.Summary = fmt.Sprintf("%d/%d captures passed", result.Passed, result.Total)
	return result
}

func extractBatchJSON(raw string) string {
	if m := fencedBatchJSON.FindStringSubmatch(raw); m != nil && gjson.Valid(m[1]) {
		return m[1]
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		return trimmed
	}
	return ""
}

func allUncertain(paths []string, summary, raw string) BatchResult {
	return BatchResult{
		Total:       len(paths),
		Uncertain:   len(paths),
		Issues:      []string{summary},
		Summary:     summary,
		RawResponse: raw,
	}
}

func isImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}
