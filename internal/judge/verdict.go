package judge

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// extractJSON pulls the first fenced JSON block out of a response, falling
// back to the whole text when the evaluator skipped the fence. Returns ""
// when neither form is valid JSON.
func extractJSON(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil && gjson.Valid(m[1]) {
		return m[1]
	}
	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) && strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	return ""
}

// ParseVerdict parses a per-item evaluation response. The second return is
// false when the response carries no JSON of the expected shape; callers
// must treat that arm as a total failure for the call, never as a partial
// verdict.
func ParseVerdict(raw string) (Verdict, bool) {
	doc := extractJSON(raw)
	if doc == "" {
		return Verdict{}, false
	}

	results := gjson.Get(doc, "results")
	if !results.IsArray() {
		return Verdict{}, false
	}

	var v Verdict
	results.ForEach(func(_, item gjson.Result) bool {
		v.Items = append(v.Items, ItemVerdict{
			Task:     item.Get("task").String(),
			Status:   strings.ToUpper(item.Get("status").String()),
			Evidence: item.Get("evidence").String(),
		})
		return true
	})
	v.Summary = gjson.Get(doc, "summary").String()
	v.AllCompleted = gjson.Get(doc, "all_completed").Bool()
	return v, true
}

// Proposal is a suggested code fix from the evaluator.
type Proposal struct {
	Issue        string  `json:"issue_identified"`
	RootCause    string  `json:"root_cause"`
	File         string  `json:"file_to_fix"`
	Line         int     `json:"line_number"`
	OriginalCode string  `json:"original_code"`
	FixedCode    string  `json:"fixed_code"`
	Confidence   float64 `json:"confidence"`
	Explanation  string  `json:"explanation"`
}

// ParseProposal parses a fix-proposal response. Fail-closed like
// ParseVerdict: anything without a JSON block of the expected shape returns
// false.
func ParseProposal(raw string) (Proposal, bool) {
	doc := extractJSON(raw)
	if doc == "" {
		return Proposal{}, false
	}
	if !gjson.Get(doc, "confidence").Exists() {
		return Proposal{}, false
	}

	return Proposal{
		Issue:        gjson.Get(doc, "issue_identified").String(),
		RootCause:    gjson.Get(doc, "root_cause").String(),
		File:         gjson.Get(doc, "file_to_fix").String(),
		Line:         int(gjson.Get(doc, "line_number").Int()),
		OriginalCode: gjson.Get(doc, "original_code").String(),
		FixedCode:    gjson.Get(doc, "fixed_code").String(),
		Confidence:   gjson.Get(doc, "confidence").Float(),
		Explanation:  gjson.Get(doc, "explanation").String(),
	}, true
}

// Comparison is the evaluator's judgment of a capture against a stored
// baseline.
type Comparison struct {
	Matches         bool     `json:"matches"`
	SimilarityScore float64  `json:"similarity_score"`
	Differences     []string `json:"differences"`
	Analysis        string   `json:"analysis"`
	SuggestedFixes  []string `json:"suggested_fixes"`
}

// ParseComparison parses a baseline-comparison response, fail-closed.
func ParseComparison(raw string) (Comparison, bool) {
	doc := extractJSON(raw)
	if doc == "" {
		return Comparison{}, false
	}
	if !gjson.Get(doc, "matches").Exists() {
		return Comparison{}, false
	}

	c := Comparison{
		Matches:         gjson.Get(doc, "matches").Bool(),
		SimilarityScore: gjson.Get(doc, "similarity_score").Float(),
		Analysis:        gjson.Get(doc, "analysis").String(),
	}
	gjson.Get(doc, "differences").ForEach(func(_, d gjson.Result) bool {
		c.Differences = append(c.Differences, d.String())
		return true
	})
	gjson.Get(doc, "suggested_fixes").ForEach(func(_, f gjson.Result) bool {
		c.SuggestedFixes = append(c.SuggestedFixes, f.String())
		return true
	})
	return c, true
}
