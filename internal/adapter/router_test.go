package adapter

import (
	"testing"

	"github.com/quenby/glimpse/pkg/capture"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		target string
		want   capture.Kind
	}{
		{"http://localhost:3000", capture.KindWeb},
		{"https://example.com/app", capture.KindWeb},
		{"localhost:8080", capture.KindWeb},
		{"127.0.0.1:5173", capture.KindWeb},
		{"window:My Editor", capture.KindWindow},
		{"gui:./app|Main Window", capture.KindWindow},
		{"photoshop.exe", capture.KindWindow},
		{"tui:htop", capture.KindTerminal},
		{"cargo run --features ratatui", capture.KindTerminal},
		{"go run ./cmd/dash # bubbletea", capture.KindTerminal},
		{"ls -la", capture.KindShell},
		{"python script.py", capture.KindShell},
		{"", capture.KindShell},
	}

	for _, tt := range tests {
		if got := Classify(tt.target); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	targets := []string{"http://x", "tui:y", "a.exe", "make test", "window:z"}
	for _, target := range targets {
		first := Classify(target)
		for i := 0; i < 5; i++ {
			if got := Classify(target); got != first {
				t.Fatalf("Classify(%q) changed between calls: %q then %q", target, first, got)
			}
		}
	}
}

func TestSelectShellGetsProcAdapter(t *testing.T) {
	a := Select("echo hello", capture.DefaultOptions(), capture.TypeText)
	if a.ContentType() != capture.TypeText {
		t.Errorf("shell target adapter content type = %q, want text", a.ContentType())
	}
}

func TestSelectTerminalByWantedType(t *testing.T) {
	ansi := Select("tui:htop", capture.DefaultOptions(), capture.TypeANSI)
	if ansi.ContentType() != capture.TypeANSI {
		t.Errorf("terminal/ansi adapter content type = %q, want ansi", ansi.ContentType())
	}

	shot := Select("tui:htop", capture.DefaultOptions(), capture.TypeScreenshot)
	if shot.ContentType() != capture.TypeScreenshot {
		t.Errorf("terminal/screenshot adapter content type = %q, want screenshot", shot.ContentType())
	}
}

func TestParseWindowTarget(t *testing.T) {
	tests := []struct {
		target      string
		wantCommand string
		wantTitle   string
	}{
		{"window:Editor", "", "Editor"},
		{"gui:./app", "./app", ""},
		{"gui:./app|Main", "./app", "Main"},
		{"tool.exe", "tool.exe", ""},
		{"tui:htop", "xterm -e htop", ""},
	}

	for _, tt := range tests {
		command, title := parseWindowTarget(tt.target)
		if command != tt.wantCommand || title != tt.wantTitle {
			t.Errorf("parseWindowTarget(%q) = (%q, %q), want (%q, %q)",
				tt.target, command, title, tt.wantCommand, tt.wantTitle)
		}
	}
}
