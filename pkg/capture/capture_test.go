package capture

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeFillsZeroFields(t *testing.T) {
	got := Options{}.Normalize()
	if got.Width != 1280 || got.Height != 720 {
		t.Errorf("dimensions = %dx%d, want 1280x720", got.Width, got.Height)
	}
	if got.Timeout != 30*time.Second {
		t.Errorf("timeout = %s, want 30s", got.Timeout)
	}

	set := Options{Width: 800, Height: 600, Timeout: time.Second}.Normalize()
	if set.Width != 800 || set.Height != 600 || set.Timeout != time.Second {
		t.Errorf("Normalize overwrote explicit values: %+v", set)
	}
}

func TestResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{"success with path", Result{Success: true, Path: "/tmp/x.png"}, false},
		{"success with text", Result{Success: true, Text: "out"}, false},
		{"success without content", Result{Success: true}, true},
		{"success with error", Result{Success: true, Path: "x", Error: "boom"}, true},
		{"failure with error", Result{Success: false, Error: "boom"}, false},
		{"failure without error", Result{Success: false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFailure(t *testing.T) {
	r := Failure(TypeScreenshot, "target not found: x")
	if r.Success {
		t.Error("Failure should produce an unsuccessful result")
	}
	if r.Type != TypeScreenshot || r.Error == "" || r.Timestamp.IsZero() {
		t.Errorf("Failure result incomplete: %+v", r)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Failure result should validate: %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if !strings.HasPrefix(id, "cap-") || len(id) != len("cap-")+12 {
			t.Fatalf("malformed id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
