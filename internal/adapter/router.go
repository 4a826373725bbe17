package adapter

import (
	"strings"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/quenby/glimpse/pkg/capture"
)

// tuiMarkers are substrings that flag a command as a terminal-UI program.
var tuiMarkers = []string{"ratatui", "crossterm", "bubbletea", "tview", "ncurses"}

// Classify maps a target string onto exactly one kind. Pure and total:
// unmatched targets are shell commands.
func Classify(target string) capture.Kind {
	lower := strings.ToLower(target)

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "localhost:"), strings.HasPrefix(lower, "127.0.0.1:"):
		return capture.KindWeb
	case strings.HasPrefix(lower, "window:"), strings.HasPrefix(lower, "gui:"),
		strings.HasSuffix(lower, ".exe"):
		return capture.KindWindow
	case strings.HasPrefix(lower, "tui:"):
		return capture.KindTerminal
	}

	for _, marker := range tuiMarkers {
		if strings.Contains(lower, marker) {
			return capture.KindTerminal
		}
	}
	return capture.KindShell
}

// Select instantiates the adapter variant for a target. want narrows the
// choice for terminal targets (screenshot renders the program inside an
// isolated display; ANSI captures the pane text); the zero value picks the
// variant's default. Dependency availability is checked here, at selection
// time, never during classification: the web kind falls back from the
// browser-session variant to the headless-process variant when no automation
// engine is installed.
func Select(target string, defaults capture.Options, want capture.Type) *Adapter {
	switch Classify(target) {
	case capture.KindWeb:
		if browserEngineAvailable() {
			return NewBrowser(defaults)
		}
		return NewHeadless(defaults)
	case capture.KindWindow:
		return NewWindow(defaults)
	case capture.KindTerminal:
		if want == capture.TypeScreenshot {
			return NewWindow(defaults)
		}
		return NewTUI(defaults)
	default:
		return NewProc(defaults)
	}
}

// browserEngineAvailable reports whether a Chromium-family browser usable by
// the automation engine is installed.
func browserEngineAvailable() bool {
	_, ok := launcher.LookPath()
	return ok
}
