package baseline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/pkg/capture"
)

type fakeJudge struct {
	response   string
	lastPrompt string
}

func (f *fakeJudge) Evaluate(_ context.Context, prompt string, _ []string) (string, error) {
	f.lastPrompt = prompt
	return f.response, nil
}

// fileCapture writes a small artifact into the requested output dir.
func fileCapture(t *testing.T) CaptureFunc {
	t.Helper()
	return func(_ context.Context, d task.Descriptor, opts capture.Options) capture.Result {
		ext := ".png"
		if opts.Want == capture.TypeANSI || opts.Want == capture.TypeText {
			ext = ".txt"
		}
		path := filepath.Join(opts.OutputDir, opts.OutputName+ext)
		if err := os.WriteFile(path, []byte("artifact for "+d.Target), 0o644); err != nil {
			t.Fatal(err)
		}
		return capture.Result{Success: true, Type: capture.TypeScreenshot, Path: path}
	}
}

func newStore(t *testing.T, j *fakeJudge) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(dir, j, WithCaptureFunc(fileCapture(t)))
}

func TestSaveAndList(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://localhost:3000"}

	entry, err := s.Save(context.Background(), "login-page", d, "login screen", capture.DefaultOptions())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if entry.Name != "login-page" || entry.AppType != "webapp" {
		t.Errorf("entry = %+v", entry)
	}

	got := s.List()
	if len(got) != 1 || got[0].Name != "login-page" {
		t.Errorf("List = %+v", got)
	}

	// Manifest carries the schema version.
	data, err := os.ReadFile(filepath.Join(s.dir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if m["version"] != ManifestVersion {
		t.Errorf("version = %v", m["version"])
	}
}

func TestSaveUpsertsByName(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://a"}

	if _, err := s.Save(context.Background(), "page", d, "first", capture.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	d.Target = "http://b"
	if _, err := s.Save(context.Background(), "page", d, "second", capture.DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	got := s.List()
	if len(got) != 1 {
		t.Fatalf("upsert produced %d entries, want 1", len(got))
	}
	// Last write wins.
	if got[0].Target != "http://b" || got[0].Description != "second" {
		t.Errorf("entry = %+v", got[0])
	}
}

func TestDelete(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://a"}
	entry, err := s.Save(context.Background(), "page", d, "", capture.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	removed, err := s.Delete("page")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	if _, ok := s.Get("page"); ok {
		t.Error("entry should be gone after delete")
	}
	if _, err := os.Stat(filepath.Join(s.dir, entry.File)); !os.IsNotExist(err) {
		t.Error("backing file should be removed")
	}

	// Never-present names report false without error.
	removed, err = s.Delete("page")
	if err != nil || removed {
		t.Errorf("second Delete = %v, %v", removed, err)
	}
}

func TestDeleteMissingFileStillRemovesEntry(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://a"}
	entry, err := s.Save(context.Background(), "page", d, "", capture.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	os.Remove(filepath.Join(s.dir, entry.File))

	removed, err := s.Delete("page")
	if err != nil || !removed {
		t.Errorf("Delete with absent file = %v, %v", removed, err)
	}
}

func TestCompare(t *testing.T) {
	j := &fakeJudge{response: "```json\n" + `{
  "matches": false,
  "similarity_score": 0.6,
  "differences": ["header moved"],
  "analysis": "layout shifted",
  "suggested_fixes": ["revert margin change"]
}` + "\n```"}
	s := newStore(t, j)
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://a"}
	if _, err := s.Save(context.Background(), "page", d, "", capture.DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	r, err := s.Compare(context.Background(), "page", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if r.Matches || r.SimilarityScore != 0.6 {
		t.Errorf("result = %+v", r)
	}
	if len(r.Differences) != 1 || r.CurrentPath == "" {
		t.Errorf("result = %+v", r)
	}
}

func TestCompareNotFound(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	if _, err := s.Compare(context.Background(), "never-saved", ""); err == nil {
		t.Fatal("expected not-found error")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestCompareFailClosed(t *testing.T) {
	j := &fakeJudge{response: "they look about the same"}
	s := newStore(t, j)
	d := task.Descriptor{Kind: task.AppWebapp, Target: "http://a"}
	if _, err := s.Save(context.Background(), "page", d, "", capture.DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	r, err := s.Compare(context.Background(), "page", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if r.Matches || r.SimilarityScore != 0 {
		t.Errorf("unparseable response must fail closed: %+v", r)
	}
	if r.Analysis != j.response {
		t.Error("raw response must surface in analysis")
	}
}

func TestCorruptManifestStartsOver(t *testing.T) {
	s := newStore(t, &fakeJudge{})
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "manifest.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := s.List(); len(got) != 0 {
		t.Errorf("corrupt manifest should read as empty, got %+v", got)
	}
}
