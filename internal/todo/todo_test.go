package todo

import (
	"strings"
	"testing"
)

func TestDetectPhase(t *testing.T) {
	tests := []struct {
		content string
		want    Phase
	}{
		{"Implement the login form", PhaseImplementation},
		{"Write unit tests for parser", PhaseImplementation}, // "write" matches first
		{"Run integration suite", PhaseTesting},
		{"Verify the dashboard renders", PhaseVerification},
		{"Compile the bundle", PhaseBuild},
		{"Ship the release", PhaseDeploy},
		{"Open the PR for review", PhaseReview},
		{"Think about architecture", PhaseUnknown},
	}

	for _, tt := range tests {
		if got := DetectPhase(tt.content); got != tt.want {
			t.Errorf("DetectPhase(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestRequiresVerification(t *testing.T) {
	if !RequiresVerification("Check the layout on mobile") {
		t.Error("layout check should require verification")
	}
	if RequiresVerification("Refactor helper module") {
		t.Error("plain refactor should not require verification")
	}
}

func TestShouldVerifyBuildPhaseCompleted(t *testing.T) {
	items := []Item{
		{Content: "Compile the production bundle", Status: StatusCompleted},
		{Content: "Refactor helpers", Status: StatusPending},
	}

	ok, reasons := ShouldVerify(items)
	if !ok {
		t.Fatal("completed build phase should trigger verification")
	}
	found := false
	for _, r := range reasons {
		if strings.Contains(r, `"build"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want a build-phase reason", reasons)
	}
}

func TestShouldVerifyCollectsAllReasons(t *testing.T) {
	// Everything complete, current phase complete, high-priority testing
	// phase complete, verification-keyword item complete: multiple rules
	// fire and all reasons are reported.
	items := []Item{
		{Content: "Run the e2e tests", Status: StatusCompleted},
		{Content: "Verify the settings page", Status: StatusCompleted},
	}

	ok, reasons := ShouldVerify(items)
	if !ok {
		t.Fatal("expected trigger")
	}
	if len(reasons) < 3 {
		t.Errorf("reasons = %v, want all matching rules collected", reasons)
	}
}

func TestShouldVerifyNoTrigger(t *testing.T) {
	items := []Item{
		{Content: "Implement sidebar", Status: StatusInProgress},
		{Content: "Implement header", Status: StatusPending},
	}

	ok, reasons := ShouldVerify(items)
	if ok || len(reasons) != 0 {
		t.Errorf("in-flight implementation should not trigger: %v", reasons)
	}
}

func TestShouldVerifyEmpty(t *testing.T) {
	if ok, _ := ShouldVerify(nil); ok {
		t.Error("empty list should not trigger")
	}
}

func TestShouldVerifyPure(t *testing.T) {
	items := []Item{{Content: "Build the app", Status: StatusCompleted}}
	ok1, r1 := ShouldVerify(items)
	ok2, r2 := ShouldVerify(items)
	if ok1 != ok2 || len(r1) != len(r2) {
		t.Error("ShouldVerify must be deterministic for the same input")
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"todos": [
		{"content": "Implement login", "status": "completed"},
		{"content": "Test login", "status": "in_progress"},
		{"content": "Polish styles", "status": "bogus"}
	]}`

	items := ParseJSON(doc)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Status != StatusCompleted || items[1].Status != StatusInProgress {
		t.Errorf("statuses = %+v", items)
	}
	// Unknown statuses degrade to pending.
	if items[2].Status != StatusPending {
		t.Errorf("items[2].Status = %q, want pending", items[2].Status)
	}
}

func TestParseMarkdown(t *testing.T) {
	text := "## Plan\n- [x] Build the bundle\n- [ ] Verify output\nnot a task line\n"
	items := ParseMarkdown(text)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Status != StatusCompleted || items[1].Status != StatusPending {
		t.Errorf("items = %+v", items)
	}
}

func TestEvaluate(t *testing.T) {
	d := Evaluate([]Item{
		{Content: "Compile the bundle", Status: StatusCompleted},
		{Content: "Verify the output renders", Status: StatusInProgress},
		{Content: "Ship the release", Status: StatusPending},
		{Content: "Write docs", Status: StatusPending},
	})
	if d.Phase != PhaseVerification {
		t.Errorf("Phase = %q, want verification", d.Phase)
	}
	if d.Progress != 25 {
		t.Errorf("Progress = %d, want 25", d.Progress)
	}
	if !d.ShouldVerify {
		t.Error("build phase complete should trigger")
	}
}

func TestEvaluateEmpty(t *testing.T) {
	d := Evaluate(nil)
	if d.ShouldVerify || d.Phase != PhaseUnknown || d.Progress != 0 {
		t.Errorf("empty decision = %+v", d)
	}
}
