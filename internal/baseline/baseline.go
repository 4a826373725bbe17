// Package baseline stores named reference captures for regression
// comparison. The manifest is the single persisted shared state; every
// mutation is an atomic whole-file rewrite.
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quenby/glimpse/internal/adapter"
	"github.com/quenby/glimpse/internal/judge"
	"github.com/quenby/glimpse/internal/log"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/pkg/capture"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = "1.0"

// Entry is one saved baseline.
type Entry struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Created     string `json:"created"`
	AppType     string `json:"app_type"`
	Target      string `json:"target,omitempty"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type manifest struct {
	Version   string  `json:"version"`
	Baselines []Entry `json:"baselines"`
}

// ComparisonResult is the judged difference between a baseline and current
// state.
type ComparisonResult struct {
	Matches         bool     `json:"matches"`
	BaselinePath    string   `json:"baseline_path"`
	CurrentPath     string   `json:"current_path"`
	SimilarityScore float64  `json:"similarity_score"`
	Differences     []string `json:"differences,omitempty"`
	Analysis        string   `json:"analysis"`
	SuggestedFixes  []string `json:"suggested_fixes,omitempty"`
}

// CaptureFunc produces a capture for a descriptor; injectable for tests.
type CaptureFunc func(ctx context.Context, d task.Descriptor, opts capture.Options) capture.Result

// Store manages the baseline directory and manifest. Single writer at a
// time; mutations are read-modify-write of the whole manifest.
type Store struct {
	dir       string
	judge     judge.Judge
	events    *log.EventLog
	captureFn CaptureFunc
}

// Option configures a Store.
type Option func(*Store)

// WithEventLog records baseline events.
func WithEventLog(l *log.EventLog) Option {
	return func(s *Store) { s.events = l }
}

// WithCaptureFunc replaces the adapter-backed capture step.
func WithCaptureFunc(fn CaptureFunc) Option {
	return func(s *Store) { s.captureFn = fn }
}

// New creates a Store rooted at dir (created lazily on first save).
func New(dir string, j judge.Judge, opts ...Option) *Store {
	s := &Store{dir: dir, judge: j}
	for _, opt := range opts {
		opt(s)
	}
	if s.captureFn == nil {
		s.captureFn = func(ctx context.Context, d task.Descriptor, opts capture.Options) capture.Result {
			a := adapter.Select(d.RouterTarget(), opts, opts.Want)
			defer a.EndSession()
			return a.Capture(ctx, d.RouterTarget(), &opts)
		}
	}
	return s
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, "manifest.json")
}

func (s *Store) load() manifest {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return manifest{Version: ManifestVersion}
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// Corrupt manifests start over rather than crashing.
		return manifest{Version: ManifestVersion}
	}
	if m.Version == "" {
		m.Version = ManifestVersion
	}
	return m
}

// write persists the manifest atomically: temp file in the same directory,
// then rename, so readers never observe a partial manifest.
func (s *Store) write(m manifest) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("baseline: create dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "manifest-*.json")
	if err != nil {
		return fmt.Errorf("baseline: temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("baseline: write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("baseline: close manifest: %w", err)
	}
	if err := os.Rename(tmpName, s.manifestPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("baseline: replace manifest: %w", err)
	}
	return nil
}

// List returns all saved baselines.
func (s *Store) List() []Entry {
	return s.load().Baselines
}

// Get looks up a baseline by name.
func (s *Store) Get(name string) (Entry, bool) {
	for _, e := range s.load().Baselines {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Save captures current state for the descriptor and upserts the manifest
// entry for name. Replacing an existing name is a single atomic rewrite, not
// a remove-then-add.
func (s *Store) Save(ctx context.Context, name string, d task.Descriptor, description string, opts capture.Options) (Entry, error) {
	opts = opts.Normalize()
	opts.OutputDir = s.dir
	opts.OutputName = fmt.Sprintf("%s_%d", name, time.Now().Unix())

	shot := s.captureFn(ctx, d, opts)
	if !shot.Success {
		return Entry{}, fmt.Errorf("baseline: capture for %q failed: %s", name, shot.Error)
	}

	entry := Entry{
		Name:        name,
		File:        filepath.Base(shot.Path),
		Created:     time.Now().UTC().Format(time.RFC3339),
		AppType:     string(d.Kind),
		Target:      d.Target,
		Description: description,
		Width:       opts.Width,
		Height:      opts.Height,
	}

	m := s.load()
	replaced := false
	for i := range m.Baselines {
		if m.Baselines[i].Name == name {
			m.Baselines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		m.Baselines = append(m.Baselines, entry)
	}

	if err := s.write(m); err != nil {
		return Entry{}, err
	}

	if s.events != nil {
		_ = s.events.Log(log.NewEvent(log.EventTypeBaselineSaved, name).
			WithStatus("success").
			WithPath(shot.Path))
	}
	return entry, nil
}

// ErrNotFound is returned by Compare when the named baseline is absent.
var ErrNotFound = errors.New("baseline not found")

// Compare judges current state against the named baseline. When currentPath
// is empty, fresh state is captured with the entry's recorded parameters.
// Unparseable judge responses fail closed: no match, zero similarity.
func (s *Store) Compare(ctx context.Context, name, currentPath string) (ComparisonResult, error) {
	entry, ok := s.Get(name)
	if !ok {
		return ComparisonResult{}, fmt.Errorf("baseline: %w: %s", ErrNotFound, name)
	}
	baselinePath := filepath.Join(s.dir, entry.File)

	if currentPath == "" {
		d := task.Descriptor{Kind: task.AppType(entry.AppType), Target: entry.Target}
		opts := capture.DefaultOptions()
		opts.Width = entry.Width
		opts.Height = entry.Height
		opts.OutputDir = s.dir
		opts.OutputName = fmt.Sprintf("%s_current_%d", name, time.Now().Unix())
		opts.Want = wantFor(d.Kind)

		shot := s.captureFn(ctx, d, opts)
		if !shot.Success {
			return ComparisonResult{}, fmt.Errorf("baseline: current capture failed: %s", shot.Error)
		}
		currentPath = shot.Path
	}

	prompt, evidence, err := comparePrompt(entry.AppType, baselinePath, currentPath)
	if err != nil {
		return ComparisonResult{}, err
	}

	response, err := s.judge.Evaluate(ctx, prompt, evidence)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("baseline: %w", err)
	}

	result := ComparisonResult{
		BaselinePath: baselinePath,
		CurrentPath:  currentPath,
	}
	parsed, ok := judge.ParseComparison(response)
	if !ok {
		result.Analysis = response
		result.Differences = []string{"could not parse comparison response"}
		s.logCompare(name, result)
		return result, nil
	}

	result.Matches = parsed.Matches
	result.SimilarityScore = parsed.SimilarityScore
	result.Differences = parsed.Differences
	result.Analysis = parsed.Analysis
	result.SuggestedFixes = parsed.SuggestedFixes
	s.logCompare(name, result)
	return result, nil
}

func (s *Store) logCompare(name string, r ComparisonResult) {
	if s.events == nil {
		return
	}
	status := "fail"
	if r.Matches {
		status = "success"
	}
	_ = s.events.Log(log.NewEvent(log.EventTypeBaselineCompare, name).
		WithStatus(status).
		WithPath(r.CurrentPath))
}

// Delete removes the backing file (absent files are not an error) and the
// manifest entry. Returns false when the name was never present.
func (s *Store) Delete(name string) (bool, error) {
	m := s.load()

	idx := -1
	for i := range m.Baselines {
		if m.Baselines[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	if err := os.Remove(filepath.Join(s.dir, m.Baselines[idx].File)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("baseline: remove file: %w", err)
	}

	m.Baselines = append(m.Baselines[:idx], m.Baselines[idx+1:]...)
	if err := s.write(m); err != nil {
		return false, err
	}
	return true, nil
}

func comparePrompt(appType, baselinePath, currentPath string) (string, []string, error) {
	const schema = "```json" + `
{
  "matches": true,
  "similarity_score": 0.0,
  "differences": ["list of differences found"],
  "analysis": "detailed analysis of what changed",
  "suggested_fixes": ["list of code fixes if regressions found"]
}
` + "```"

	if appType == string(task.AppTUI) || appType == string(task.AppCLI) {
		baselineContent, err := os.ReadFile(baselinePath)
		if err != nil {
			return "", nil, fmt.Errorf("baseline: read %s: %w", baselinePath, err)
		}
		currentContent, err := os.ReadFile(currentPath)
		if err != nil {
			return "", nil, fmt.Errorf("baseline: read %s: %w", currentPath, err)
		}
		prompt := fmt.Sprintf(`Compare these two terminal outputs and identify any differences.

## Baseline Output (Expected)
`+"```\n%s\n```"+`

## Current Output
`+"```\n%s\n```"+`

Analyze the differences and respond in this JSON format:
%s
`, baselineContent, currentContent, schema)
		return prompt, nil, nil
	}

	prompt := fmt.Sprintf(`Compare two screenshots to detect visual regressions.

Baseline screenshot (expected state): %s
Current screenshot: %s

Read both images, then analyze:
1. Are there any visual differences?
2. Do the layouts match?
3. Are all expected elements present?
4. Are colors, fonts, and spacing consistent?

Respond in this JSON format:
%s
`, baselinePath, currentPath, schema)
	return prompt, []string{baselinePath, currentPath}, nil
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
