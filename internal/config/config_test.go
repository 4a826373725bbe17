package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default("/proj")
	if cfg.Judge.Transport != "cli" {
		t.Errorf("Judge.Transport = %q, want cli", cfg.Judge.Transport)
	}
	if cfg.Judge.Timeout.Std() != 2*time.Minute {
		t.Errorf("Judge.Timeout = %v, want 2m", cfg.Judge.Timeout)
	}
	if cfg.Capture.Width != 1280 || cfg.Capture.Height != 720 {
		t.Errorf("capture size = %dx%d, want 1280x720", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.AutoFix.MaxAttempts != 3 {
		t.Errorf("AutoFix.MaxAttempts = %d, want 3", cfg.AutoFix.MaxAttempts)
	}
	if cfg.AutoFix.ConfidenceThreshold != 0.5 {
		t.Errorf("AutoFix.ConfidenceThreshold = %g, want 0.5", cfg.AutoFix.ConfidenceThreshold)
	}
	if cfg.BaselineDir != filepath.Join("/proj", ".glimpse", "baselines") {
		t.Errorf("BaselineDir = %q", cfg.BaselineDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Judge.Command != "claude" {
		t.Errorf("Judge.Command = %q, want claude", cfg.Judge.Command)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	data := `
output_dir = "/tmp/shots"

[judge]
transport = "api"
model = "claude-3-5-sonnet-latest"
timeout = "90s"

[capture]
width = 1920
height = 1080

[autofix]
max_attempts = 5
confidence_threshold = 0.7
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "/tmp/shots" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.Judge.Transport != "api" {
		t.Errorf("Judge.Transport = %q, want api", cfg.Judge.Transport)
	}
	if cfg.Judge.Timeout.Std() != 90*time.Second {
		t.Errorf("Judge.Timeout = %v, want 90s", cfg.Judge.Timeout)
	}
	if cfg.Capture.Width != 1920 {
		t.Errorf("Capture.Width = %d, want 1920", cfg.Capture.Width)
	}
	if cfg.AutoFix.MaxAttempts != 5 {
		t.Errorf("AutoFix.MaxAttempts = %d, want 5", cfg.AutoFix.MaxAttempts)
	}
	// Unset sections keep defaults.
	if cfg.Capture.Timeout.Std() != 30*time.Second {
		t.Errorf("Capture.Timeout = %v, want 30s", cfg.Capture.Timeout)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("not = [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("malformed config file should error")
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	data := "[judge]\ntimeout = \"1m\"\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GLIMPSE_JUDGE_TIMEOUT", "3m")
	t.Setenv("GLIMPSE_CAPTURE_WIDTH", "800")
	t.Setenv("GLIMPSE_FULL_PAGE", "yes")
	t.Setenv("GLIMPSE_FIX_CONFIDENCE", "0.9")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Judge.Timeout.Std() != 3*time.Minute {
		t.Errorf("Judge.Timeout = %v, want 3m (env beats file)", cfg.Judge.Timeout)
	}
	if cfg.Capture.Width != 800 {
		t.Errorf("Capture.Width = %d, want 800", cfg.Capture.Width)
	}
	if !cfg.Capture.FullPage {
		t.Error("FullPage should be set from env")
	}
	if cfg.AutoFix.ConfidenceThreshold != 0.9 {
		t.Errorf("ConfidenceThreshold = %g, want 0.9", cfg.AutoFix.ConfidenceThreshold)
	}
}

func TestDotEnvLoaded(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GLIMPSE_JUDGE_MODEL=claude-3-5-haiku-latest\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GLIMPSE_JUDGE_MODEL", "")
	os.Unsetenv("GLIMPSE_JUDGE_MODEL")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Judge.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Judge.Model = %q, want value from .env", cfg.Judge.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad transport", func(c *Config) { c.Judge.Transport = "carrier-pigeon" }, true},
		{"zero attempts", func(c *Config) { c.AutoFix.MaxAttempts = 0 }, true},
		{"confidence above one", func(c *Config) { c.AutoFix.ConfidenceThreshold = 1.5 }, true},
		{"zero width", func(c *Config) { c.Capture.Width = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
