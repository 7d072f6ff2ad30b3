// Package llm wraps the external reasoning engine behind a small
// interface so the diagnosis pipeline can be tested without network
// access.
package llm

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"
)

// ErrEmptyReply is returned when the engine produced no candidates.
var ErrEmptyReply = errors.New("reasoning engine returned an empty reply")

// Client generates a completion for a system instruction and a user
// prompt. Implementations make exactly one attempt per call; retry
// policy belongs to the caller, and the diagnosis pipeline never
// retries.
type Client interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Config holds generation parameters for the Gemini client.
type Config struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// GeminiClient is a thin wrapper around the official genai client.
// Cross-cutting concerns (logging, fallbacks) live in the caller.
type GeminiClient struct {
	cli    *genai.Client
	config Config
}

// NewGeminiClient creates a Gemini-backed client. apiKey must be
// non-empty; callers without a key run in mock mode and never
// construct a client.
func NewGeminiClient(ctx context.Context, apiKey string, cfg Config) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{cli: cli, config: cfg}, nil
}

// Name identifies the backing model.
func (g *GeminiClient) Name() string { return "Gemini:" + g.config.Model }

// Generate sends the system instruction and user prompt to the model
// and returns the raw text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	temp := g.config.Temperature
	resp, err := g.cli.Models.GenerateContent(ctx, g.config.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			Temperature:       &temp,
			MaxOutputTokens:   g.config.MaxOutputTokens,
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
