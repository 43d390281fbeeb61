package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"leadpilot/internal/logging"
)

// GenAIClient generates text using Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a new Gemini-backed client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model}, nil
}

// Generate makes a single GenerateContent call. Any transport or service
// error is classified as ErrGenerationFailed for the orchestrator's
// retry policy.
func (c *GenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "genai.Generate")
	defer timer.Stop()

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(req.Prompt), cfg)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("GenAI call failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	logging.APIDebug("GenAI response: %d chars", len(text))
	return text, nil
}
