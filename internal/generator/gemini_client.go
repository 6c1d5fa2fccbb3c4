package generator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient implements Completer using Gemini text generation.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, modelName string, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		client: client,
		model:  modelName,
		logger: logger,
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	prompt := p.User
	if p.System != "" {
		prompt = p.System + "\n\n" + p.User
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.Temperature),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	c.logger.Debug("gemini completion", zap.String("model", c.model))
	return resp.Text(), nil
}
