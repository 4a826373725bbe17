// Package config loads harness settings from defaults, an optional
// .glimpse.toml file, an optional .env file, and GLIMPSE_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the per-project config file looked up at the project root.
const FileName = ".glimpse.toml"

// Duration parses "90s"-style strings from the config file.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Judge configures the verdict backend.
type Judge struct {
	// Transport is "cli" (claude binary) or "api" (Anthropic SDK).
	Transport string   `toml:"transport"`
	Command   string   `toml:"command"`
	Model     string   `toml:"model"`
	Timeout   Duration `toml:"timeout"`
	MaxTokens int      `toml:"max_tokens"`
}

// Capture holds defaults applied to every capture request.
type Capture struct {
	Width      int      `toml:"width"`
	Height     int      `toml:"height"`
	WaitBefore Duration `toml:"wait_before"`
	WaitAfter  Duration `toml:"wait_after"`
	Timeout    Duration `toml:"timeout"`
	FullPage   bool     `toml:"full_page"`
}

// AutoFix bounds the repair loop.
type AutoFix struct {
	MaxAttempts         int      `toml:"max_attempts"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	HotReloadPause      Duration `toml:"hot_reload_pause"`
}

// Config is the full harness configuration.
type Config struct {
	OutputDir   string  `toml:"output_dir"`
	BaselineDir string  `toml:"baseline_dir"`
	CaptureDir  string  `toml:"capture_dir"`
	IncomingDir string  `toml:"incoming_dir"`
	LogDir      string  `toml:"log_dir"`
	Judge       Judge   `toml:"judge"`
	Capture     Capture `toml:"capture"`
	AutoFix     AutoFix `toml:"autofix"`
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	base := filepath.Join(dir, ".glimpse")
	return &Config{
		OutputDir:   filepath.Join(base, "captures"),
		BaselineDir: filepath.Join(base, "baselines"),
		CaptureDir:  filepath.Join(base, "store"),
		IncomingDir: filepath.Join(base, "incoming"),
		LogDir:      base,
		Judge: Judge{
			Transport: "cli",
			Command:   "claude",
			Model:     "",
			Timeout:   Duration(2 * time.Minute),
			MaxTokens: 2000,
		},
		Capture: Capture{
			Width:      1280,
			Height:     720,
			WaitBefore: Duration(500 * time.Millisecond),
			WaitAfter:  Duration(500 * time.Millisecond),
			Timeout:    Duration(30 * time.Second),
		},
		AutoFix: AutoFix{
			MaxAttempts:         3,
			ConfidenceThreshold: 0.5,
			HotReloadPause:      Duration(2 * time.Second),
		},
	}
}

// Load builds the configuration for a project root. A missing config file
// or .env file is not an error; a malformed config file is.
func Load(dir string) (*Config, error) {
	cfg := Default(dir)

	path := filepath.Join(dir, FileName)
	if raw, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// .env supplies ANTHROPIC_API_KEY and GLIMPSE_* overrides without
	// clobbering variables already set in the environment.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.OutputDir, "GLIMPSE_OUTPUT_DIR")
	overrideString(&c.BaselineDir, "GLIMPSE_BASELINE_DIR")
	overrideString(&c.CaptureDir, "GLIMPSE_CAPTURE_DIR")
	overrideString(&c.IncomingDir, "GLIMPSE_INCOMING_DIR")
	overrideString(&c.LogDir, "GLIMPSE_LOG_DIR")

	overrideString(&c.Judge.Transport, "GLIMPSE_JUDGE_TRANSPORT")
	overrideString(&c.Judge.Command, "GLIMPSE_JUDGE_COMMAND")
	overrideString(&c.Judge.Model, "GLIMPSE_JUDGE_MODEL")
	overrideDuration(&c.Judge.Timeout, "GLIMPSE_JUDGE_TIMEOUT")
	overrideInt(&c.Judge.MaxTokens, "GLIMPSE_JUDGE_MAX_TOKENS")

	overrideInt(&c.Capture.Width, "GLIMPSE_CAPTURE_WIDTH")
	overrideInt(&c.Capture.Height, "GLIMPSE_CAPTURE_HEIGHT")
	overrideDuration(&c.Capture.WaitBefore, "GLIMPSE_WAIT_BEFORE")
	overrideDuration(&c.Capture.WaitAfter, "GLIMPSE_WAIT_AFTER")
	overrideDuration(&c.Capture.Timeout, "GLIMPSE_CAPTURE_TIMEOUT")
	overrideBool(&c.Capture.FullPage, "GLIMPSE_FULL_PAGE")

	overrideInt(&c.AutoFix.MaxAttempts, "GLIMPSE_FIX_MAX_ATTEMPTS")
	overrideFloat(&c.AutoFix.ConfidenceThreshold, "GLIMPSE_FIX_CONFIDENCE")
	overrideDuration(&c.AutoFix.HotReloadPause, "GLIMPSE_FIX_RELOAD_PAUSE")
}

// Validate rejects values the rest of the harness cannot work with.
func (c *Config) Validate() error {
	switch c.Judge.Transport {
	case "cli", "api":
	default:
		return fmt.Errorf("config: unknown judge transport %q", c.Judge.Transport)
	}
	if c.AutoFix.MaxAttempts < 1 {
		return fmt.Errorf("config: autofix max_attempts must be at least 1, got %d", c.AutoFix.MaxAttempts)
	}
	if c.AutoFix.ConfidenceThreshold < 0 || c.AutoFix.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence_threshold must be in [0,1], got %g", c.AutoFix.ConfidenceThreshold)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("config: capture size must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	return nil
}

func overrideString(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

func overrideDuration(dest *Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*dest = Duration(parsed)
		}
	}
}

func overrideBool(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "y", "on":
			*dest = true
		case "0", "false", "no", "n", "off":
			*dest = false
		}
	}
}

func overrideInt(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dest = parsed
		}
	}
}

func overrideFloat(dest *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*dest = parsed
		}
	}
}
