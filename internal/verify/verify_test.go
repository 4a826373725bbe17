package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/pkg/capture"
)

// fakeJudge returns a canned response and remembers the last prompt.
type fakeJudge struct {
	response string
	err      error

	lastPrompt   string
	lastEvidence []string
	calls        int
}

func (f *fakeJudge) Evaluate(_ context.Context, prompt string, evidence []string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastEvidence = evidence
	return f.response, f.err
}

func textCapture(text string) CaptureFunc {
	return func(_ context.Context, _ task.Descriptor, _ capture.Options) capture.Result {
		return capture.Result{Success: true, Type: capture.TypeANSI, Path: "/tmp/evidence.txt", Text: text}
	}
}

func imageCapture(path string) CaptureFunc {
	return func(_ context.Context, _ task.Descriptor, _ capture.Options) capture.Result {
		return capture.Result{Success: true, Type: capture.TypeScreenshot, Path: path}
	}
}

func verdictResponse(entries string, allCompleted bool) string {
	all := "false"
	if allCompleted {
		all = "true"
	}
	return "```json\n" + `{"results": [` + entries + `], "summary": "s", "all_completed": ` + all + `}` + "\n```"
}

func TestVerifyWebappCompleted(t *testing.T) {
	j := &fakeJudge{response: verdictResponse(
		`{"task": "Login button is visible", "status": "COMPLETED", "evidence": "seen"}`, true)}
	o := New(j, WithCaptureFunc(imageCapture("/tmp/shot.png")))

	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://localhost:3000"}
	r := o.Verify(context.Background(), d, []string{"Login button is visible"}, "")

	if !r.Success {
		t.Fatalf("expected success, got %+v", r)
	}
	if !reflect.DeepEqual(r.CompletedItems, []string{"Login button is visible"}) {
		t.Errorf("completed = %v", r.CompletedItems)
	}
	if len(r.FailedItems) != 0 {
		t.Errorf("failed = %v, want empty", r.FailedItems)
	}
	if r.EvidencePath != "/tmp/shot.png" {
		t.Errorf("evidence path = %q", r.EvidencePath)
	}
	// Image evidence travels by reference, not inline.
	if !reflect.DeepEqual(j.lastEvidence, []string{"/tmp/shot.png"}) {
		t.Errorf("judge evidence = %v", j.lastEvidence)
	}
	if strings.Contains(j.lastPrompt, "## Terminal Output") {
		t.Error("image capture should not be inlined in the prompt")
	}
}

func TestVerifyTerminalInlinesText(t *testing.T) {
	j := &fakeJudge{response: verdictResponse(
		`{"task": "App started", "status": "COMPLETED", "evidence": "banner"}`, true)}
	o := New(j, WithCaptureFunc(textCapture("$ app\nready")))

	d := task.Descriptor{Kind: task.AppTUI, Target: "app"}
	o.Verify(context.Background(), d, []string{"App started"}, "")

	if !strings.Contains(j.lastPrompt, "$ app") {
		t.Error("terminal capture text should be inlined in the prompt")
	}
	if len(j.lastEvidence) != 0 {
		t.Errorf("terminal capture should not attach file evidence, got %v", j.lastEvidence)
	}
}

func TestVerifyUnknownKindFailsFast(t *testing.T) {
	j := &fakeJudge{}
	captureCalls := 0
	o := New(j, WithCaptureFunc(func(context.Context, task.Descriptor, capture.Options) capture.Result {
		captureCalls++
		return capture.Result{Success: true, Type: capture.TypeText, Text: "x"}
	}))

	items := []string{"a", "b"}
	r := o.Verify(context.Background(), task.Descriptor{Kind: task.AppUnknown}, items, "")

	if r.Success {
		t.Fatal("unknown kind must fail")
	}
	if captureCalls != 0 || j.calls != 0 {
		t.Errorf("fail-fast must not consume resources: captures=%d judge=%d", captureCalls, j.calls)
	}
	if !reflect.DeepEqual(r.FailedItems, items) {
		t.Errorf("failed = %v, want all items", r.FailedItems)
	}
	if r.JudgeResponse == "" {
		t.Error("explanatory response expected")
	}
}

func TestVerifyUnparseableResponseFailsClosed(t *testing.T) {
	j := &fakeJudge{response: "Looks good to me, everything works!"}
	o := New(j, WithCaptureFunc(textCapture("out")))

	items := []string{"first", "second", "third"}
	d := task.Descriptor{Kind: task.AppCLI, Target: "make test"}
	r := o.Verify(context.Background(), d, items, "")

	if r.Success {
		t.Fatal("unparseable response must fail")
	}
	if len(r.CompletedItems) != 0 {
		t.Errorf("completed = %v, want empty", r.CompletedItems)
	}
	if !reflect.DeepEqual(r.FailedItems, items) {
		t.Errorf("failed = %v, want identical to checklist", r.FailedItems)
	}
	if r.JudgeResponse != j.response {
		t.Error("raw response must surface for diagnosis")
	}
}

func TestVerifyUncertainTreatedAsFailed(t *testing.T) {
	j := &fakeJudge{response: verdictResponse(
		`{"task": "a", "status": "COMPLETED", "evidence": ""},
		 {"task": "b", "status": "UNCERTAIN", "evidence": ""}`, false)}
	o := New(j, WithCaptureFunc(textCapture("out")))

	d := task.Descriptor{Kind: task.AppCLI, Target: "run"}
	r := o.Verify(context.Background(), d, []string{"a", "b"}, "")

	if r.Success {
		t.Fatal("uncertain items must block success")
	}
	if !reflect.DeepEqual(r.FailedItems, []string{"b"}) {
		t.Errorf("failed = %v", r.FailedItems)
	}
	if !reflect.DeepEqual(r.UncertainItems, []string{"b"}) {
		t.Errorf("uncertain = %v", r.UncertainItems)
	}
}

func TestVerifyCaptureFailure(t *testing.T) {
	j := &fakeJudge{}
	o := New(j, WithCaptureFunc(func(context.Context, task.Descriptor, capture.Options) capture.Result {
		return capture.Failure(capture.TypeScreenshot, "no capture mechanism available: no chrome binary found")
	}))

	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://localhost:3000"}
	r := o.Verify(context.Background(), d, []string{"x"}, "")

	if r.Success || j.calls != 0 {
		t.Error("capture failure must fail without calling the judge")
	}
	if !strings.Contains(r.JudgeResponse, "no capture mechanism available") {
		t.Errorf("response = %q", r.JudgeResponse)
	}
}

func TestVerifyJudgeError(t *testing.T) {
	j := &fakeJudge{err: errors.New("judge: claude timed out after 2m0s")}
	o := New(j, WithCaptureFunc(textCapture("out")))

	items := []string{"x"}
	d := task.Descriptor{Kind: task.AppCLI, Target: "run"}
	r := o.Verify(context.Background(), d, items, "")

	if r.Success || !reflect.DeepEqual(r.FailedItems, items) {
		t.Errorf("judge error must fail all items: %+v", r)
	}
}

func TestVerifyTaskFileChecksOffCompleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.md")
	body := "[webapp]: http://localhost:3000\n\n- [ ] Login button is visible\n- [ ] Error banner hidden\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	j := &fakeJudge{response: verdictResponse(
		`{"task": "Login button is visible", "status": "COMPLETED", "evidence": "seen"},
		 {"task": "Error banner hidden", "status": "NOT_COMPLETED", "evidence": "banner shown"}`, false)}
	o := New(j, WithCaptureFunc(imageCapture("/tmp/shot.png")))

	r, err := o.VerifyTaskFile(context.Background(), path)
	if err != nil {
		t.Fatalf("VerifyTaskFile: %v", err)
	}
	if r.Success {
		t.Fatal("one failed item must fail the run")
	}

	after, err := task.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.Items[0].Done {
		t.Error("verified item should be checked off in the task file")
	}
	if after.Items[1].Done {
		t.Error("failed item must stay unchecked")
	}
}
