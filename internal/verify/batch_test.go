package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyBatchDetails(t *testing.T) {
	response := "```json\n" + `{
  "summary": {"total": 2, "passed": 1, "failed": 1, "uncertain": 0, "issues": ["footer missing"]},
  "details": [
    {"capture_index": 1, "status": "pass", "evidence": "looks right"},
    {"capture_index": 2, "status": "fail", "evidence": "broken layout", "issues": ["overlap"]}
  ],
  "recommendation": "fix the footer"
}` + "\n```"
	j := &fakeJudge{response: response}
	o := New(j)

	paths := []string{"/tmp/a.png", "/tmp/b.png"}
	r := o.VerifyBatch(context.Background(), paths, []string{"renders"}, "")

	if r.Total != 2 || r.Passed != 1 || r.Failed != 1 || r.Uncertain != 0 {
		t.Fatalf("counts = %d/%d/%d/%d", r.Total, r.Passed, r.Failed, r.Uncertain)
	}
	if len(r.Verdicts) != 2 {
		t.Fatalf("verdicts = %d, want 2", len(r.Verdicts))
	}
	if r.Verdicts[1].Path != "/tmp/b.png" || r.Verdicts[1].Status != BatchFail {
		t.Errorf("verdicts[1] = %+v", r.Verdicts[1])
	}
	if r.Recommendation != "fix the footer" {
		t.Errorf("recommendation = %q", r.Recommendation)
	}
}

func TestVerifyBatchMissingDetailDefaultsUncertain(t *testing.T) {
	// The response covers captures 1 and 3 only; capture 2 must still get
	// a verdict and show up in the counts.
	response := "```json\n" + `{
  "summary": {"total": 3, "passed": 2, "failed": 0, "uncertain": 0},
  "details": [
    {"capture_index": 1, "status": "pass", "evidence": "ok"},
    {"capture_index": 3, "status": "pass", "evidence": "ok"}
  ]
}` + "\n```"
	j := &fakeJudge{response: response}
	o := New(j)

	paths := []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"}
	r := o.VerifyBatch(context.Background(), paths, nil, "")

	if r.Total != 3 || r.Passed != 2 || r.Failed != 0 || r.Uncertain != 1 {
		t.Fatalf("counts = %d/%d/%d/%d, want 3/2/0/1", r.Total, r.Passed, r.Failed, r.Uncertain)
	}
	if len(r.Verdicts) != 3 {
		t.Fatalf("verdicts = %d, want 3", len(r.Verdicts))
	}
	if r.Verdicts[1].Path != "/tmp/b.png" || r.Verdicts[1].Status != BatchUncertain {
		t.Errorf("verdicts[1] = %+v, want uncertain for /tmp/b.png", r.Verdicts[1])
	}
	if r.Summary != "2/3 captures passed" {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestVerifyBatchUnparseableMarksAllUncertain(t *testing.T) {
	j := &fakeJudge{response: "all of these look fine to me"}
	o := New(j)

	paths := []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"}
	r := o.VerifyBatch(context.Background(), paths, nil, "")

	if r.Uncertain != 3 || r.Passed != 0 || r.Failed != 0 {
		t.Fatalf("counts = %d/%d/%d, want all uncertain", r.Passed, r.Failed, r.Uncertain)
	}
	if r.Total != 3 {
		t.Errorf("total = %d, want 3", r.Total)
	}
	if r.RawResponse != j.response {
		t.Error("raw response must be preserved")
	}
}

func TestVerifyBatchInlinesTextCaptures(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(textPath, []byte("server listening"), 0o644); err != nil {
		t.Fatal(err)
	}

	j := &fakeJudge{response: "nope"}
	o := New(j)
	o.VerifyBatch(context.Background(), []string{textPath, "/tmp/shot.png"}, nil, "")

	if !strings.Contains(j.lastPrompt, "server listening") {
		t.Error("text capture content should be inlined")
	}
	if !strings.Contains(j.lastPrompt, "[Image at /tmp/shot.png]") {
		t.Error("image capture should be referenced by path")
	}
	if len(j.lastEvidence) != 1 || j.lastEvidence[0] != "/tmp/shot.png" {
		t.Errorf("evidence = %v, want just the image", j.lastEvidence)
	}
}

func TestVerifyBatchEmpty(t *testing.T) {
	j := &fakeJudge{}
	o := New(j)
	r := o.VerifyBatch(context.Background(), nil, nil, "")
	if j.calls != 0 || r.Total != 0 {
		t.Errorf("empty batch should not call the judge: %+v", r)
	}
}
