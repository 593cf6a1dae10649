// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps an OpenAI-compatible completion endpoint behind a
// small interface the resolution and enrichment stages share. It
// provides free-form completion and JSON-constrained completion with
// bounded re-ask retries for malformed output.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// Completer is the single LLM surface consumed by the pipeline. Tests
// supply stubs; production code uses Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrMalformed reports that the model kept returning output that could
// not be parsed into the requested JSON shape after all retries.
var ErrMalformed = errors.New("llm: malformed structured output")

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	api        *openai.Client
	model      string
	maxRetries int
}

// NewClient builds a Client from config. BaseURL may point at any
// OpenAI-compatible server (OpenRouter, a local vLLM, the real thing).
func NewClient(cfg types.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		maxRetries: maxRetries,
	}
}

// MaxRetries returns the configured structured-output retry bound.
func (c *Client) MaxRetries() int { return c.maxRetries }

// Complete sends a single-turn user prompt and returns the raw text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON asks for a completion and unmarshals the first JSON
// object found in the response into out. Malformed responses are
// re-asked up to maxRetries times; after that ErrMalformed is returned
// wrapped with the last parse failure. A maxRetries of zero defers to
// the completer's configured bound.
func CompleteJSON(ctx context.Context, c Completer, prompt string, maxRetries int, out any) error {
	if maxRetries <= 0 {
		if b, ok := c.(interface{ MaxRetries() int }); ok && b.MaxRetries() > 0 {
			maxRetries = b.MaxRetries()
		} else {
			maxRetries = 3
		}
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		text, err := c.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		raw := ExtractJSON(text)
		if raw == "" {
			lastErr = fmt.Errorf("no JSON object in response")
			slog.Debug("structured output missing JSON, re-asking",
				"attempt", attempt+1, "max", maxRetries)
			continue
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
			slog.Debug("structured output parse failed, re-asking",
				"attempt", attempt+1, "max", maxRetries, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMalformed, lastErr)
}
