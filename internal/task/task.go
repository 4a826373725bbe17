// Package task parses task files: the application-under-test descriptor,
// the checklist of items to verify, and optional acceptance criteria.
package task

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// AppType is the declared kind of the application under test.
type AppType string

const (
	AppWebapp  AppType = "webapp"
	AppGUI     AppType = "gui"
	AppTUI     AppType = "tui"
	AppCLI     AppType = "cli"
	AppUnknown AppType = "unknown"
)

// Descriptor names the application under test and how to reach it.
type Descriptor struct {
	Kind        AppType
	Target      string // URL for webapp, command for gui/tui/cli
	WindowTitle string // optional, gui only
}

// RouterTarget renders the descriptor in the prefix form the target router
// consumes.
func (d Descriptor) RouterTarget() string {
	switch d.Kind {
	case AppWebapp:
		return d.Target
	case AppGUI:
		if d.WindowTitle != "" {
			if d.Target == "" {
				return "window:" + d.WindowTitle
			}
			return "gui:" + d.Target + "|" + d.WindowTitle
		}
		return "gui:" + d.Target
	case AppTUI:
		return "tui:" + d.Target
	default:
		return d.Target
	}
}

// Item is one checklist entry.
type Item struct {
	Text string
	Done bool
	Line int // 1-indexed source line, 0 when parsed from a string
}

// File is a parsed task file.
type File struct {
	Path       string // source file, empty when parsed from a string
	Descriptor Descriptor
	Items      []Item
	Criteria   string
}

// Pending returns the texts of unchecked items.
func (f *File) Pending() []string {
	var out []string
	for _, item := range f.Items {
		if !item.Done {
			out = append(out, item.Text)
		}
	}
	return out
}

// AllItems returns every item text regardless of checked state.
func (f *File) AllItems() []string {
	out := make([]string, len(f.Items))
	for i, item := range f.Items {
		out[i] = item.Text
	}
	return out
}

// Parse reads a task file body. Recognized markers:
//
//	[webapp]: <url>
//	[gui]: <command>
//	[window_title]: <title>
//	[tui]: <command>
//	[cli]: <command>
//	- [ ] item / - [x] item
//	## Acceptance Criteria  (section body collected until the next heading)
func Parse(content string) *File {
	f := &File{Descriptor: Descriptor{Kind: AppUnknown}}

	var criteria []string
	inCriteria := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			inCriteria = strings.EqualFold(strings.TrimSpace(strings.TrimLeft(trimmed, "#")), "acceptance criteria")
			continue
		}
		if inCriteria {
			criteria = append(criteria, line)
			continue
		}

		if kind, value, ok := parseMarker(trimmed); ok {
			switch kind {
			case "webapp":
				f.Descriptor.Kind = AppWebapp
				f.Descriptor.Target = value
			case "gui":
				f.Descriptor.Kind = AppGUI
				f.Descriptor.Target = value
			case "tui":
				f.Descriptor.Kind = AppTUI
				f.Descriptor.Target = value
			case "cli":
				f.Descriptor.Kind = AppCLI
				f.Descriptor.Target = value
			case "window_title":
				f.Descriptor.WindowTitle = value
				if f.Descriptor.Kind == AppUnknown {
					f.Descriptor.Kind = AppGUI
				}
			}
			continue
		}

		if text, done, ok := parseCheckbox(trimmed); ok {
			f.Items = append(f.Items, Item{Text: text, Done: done, Line: lineNo})
		}
	}

	f.Criteria = strings.TrimSpace(strings.Join(criteria, "\n"))
	return f
}

// ParseFile reads and parses a task file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task: read %s: %w", path, err)
	}
	f := Parse(string(data))
	f.Path = path
	return f, nil
}

// MarkComplete checks off the checklist item at the given 1-indexed line,
// rewriting the file in place. It reports false when the line is out of
// range or holds no unchecked box.
func MarkComplete(path string, line int) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("task: read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	if line < 1 || line > len(lines) {
		return false, nil
	}
	updated := strings.Replace(lines[line-1], "[ ]", "[x]", 1)
	if updated == lines[line-1] {
		return false, nil
	}
	lines[line-1] = updated
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return false, fmt.Errorf("task: write %s: %w", path, err)
	}
	return true, nil
}

// MarkCompleted checks off every pending item whose text appears in texts.
// The file the File was parsed from is rewritten; parsing from a string is
// a no-op. Returns the number of lines changed.
func (f *File) MarkCompleted(texts []string) (int, error) {
	if f.Path == "" || len(texts) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(texts))
	for _, t := range texts {
		want[t] = true
	}
	changed := 0
	for _, item := range f.Items {
		if item.Done || item.Line == 0 || !want[item.Text] {
			continue
		}
		ok, err := MarkComplete(f.Path, item.Line)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func parseMarker(line string) (kind, value string, ok bool) {
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	end := strings.Index(line, "]:")
	if end < 0 {
		return "", "", false
	}
	kind = strings.ToLower(strings.TrimSpace(line[1:end]))
	switch kind {
	case "webapp", "gui", "tui", "cli", "window_title":
		return kind, strings.TrimSpace(line[end+2:]), true
	}
	return "", "", false
}

func parseCheckbox(line string) (text string, done bool, ok bool) {
	switch {
	case strings.HasPrefix(line, "- [ ] "):
		return strings.TrimSpace(line[6:]), false, true
	case strings.HasPrefix(line, "- [x] "), strings.HasPrefix(line, "- [X] "):
		return strings.TrimSpace(line[6:]), true, true
	}
	return "", false, false
}
