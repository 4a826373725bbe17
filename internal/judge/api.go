package judge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when the API transport is not configured with one.
const DefaultModel = "claude-3-5-sonnet-latest"

// APIConfig configures the direct-API evaluator transport.
type APIConfig struct {
	Model     string
	MaxTokens int

	MaxRetries     int
	RetryBaseDelay time.Duration

	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string
}

// DefaultAPIConfig returns sensible defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		Model:          DefaultModel,
		MaxTokens:      2000,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// API evaluates prompts through the Anthropic API directly. Unlike the CLI
// transport it cannot hand the evaluator a file path to read, so image
// evidence is loaded and attached to the request here.
type API struct {
	cfg    *APIConfig
	client anthropic.Client
}

// NewAPI creates the API transport.
func NewAPI(cfg *APIConfig) (*API, error) {
	if cfg == nil {
		cfg = DefaultAPIConfig()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("judge: no API key: set ANTHROPIC_API_KEY")
	}

	return &API{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Evaluate sends the prompt with any image evidence attached, retrying
// transient failures with exponential backoff.
func (a *API) Evaluate(ctx context.Context, prompt string, evidence []string) (string, error) {
	blocks, err := buildBlocks(prompt, evidence)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := a.cfg.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := a.doRequest(ctx, blocks)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("judge: max retries exceeded: %w", lastErr)
}

func (a *API) doRequest(ctx context.Context, blocks []anthropic.ContentBlockParamUnion) (string, error) {
	model := a.cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("judge request: %w", err)
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// buildBlocks assembles the message content: image evidence first, then the
// prompt text. Non-image evidence is already inlined in the prompt by the
// caller.
func buildBlocks(prompt string, evidence []string) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion

	for _, path := range evidence {
		mediaType := imageMediaType(path)
		if mediaType == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("judge: read evidence %s: %w", path, err)
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, encoded))
	}

	blocks = append(blocks, anthropic.NewTextBlock(prompt))
	return blocks, nil
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

// isRetryable checks if an error should be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	if strings.Contains(errStr, "rate_limit") || strings.Contains(errStr, "429") {
		return true
	}
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return true
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return true
	}

	return false
}
