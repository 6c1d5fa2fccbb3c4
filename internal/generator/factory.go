package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default models per provider.
const (
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash-lite"
)

type Options struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	Temperature   float32
	MaxTokens     int
	HTTPTimeout   time.Duration
	MaxRetries    int
	RetryInterval time.Duration
	// Agentic enables the critique/refine pass on every generated section.
	Agentic bool
	Logger  *zap.Logger
}

// NewCompleter builds the raw provider client.
func NewCompleter(ctx context.Context, opts Options) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "groq"
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s api key is required", provider)
	}

	switch provider {
	case "groq":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		return NewChatClient(opts.APIKey, modelOr(opts.Model, DefaultGroqModel), baseURL, opts.MaxTokens, opts.HTTPTimeout, opts.Logger), nil
	case "openai":
		return NewChatClient(opts.APIKey, modelOr(opts.Model, DefaultOpenAIModel), opts.BaseURL, opts.MaxTokens, opts.HTTPTimeout, opts.Logger), nil
	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, modelOr(opts.Model, DefaultGeminiModel), opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", opts.Provider)
	}
}

// New assembles the full generator stack: provider client, section writer,
// retries and the optional review pass.
func New(ctx context.Context, opts Options) (Generator, error) {
	completer, err := NewCompleter(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Compose(completer, opts), nil
}

// Compose wraps a Completer according to opts.
func Compose(completer Completer, opts Options) Generator {
	var gen Generator = NewWriter(completer, opts.Temperature, opts.Logger)
	if opts.MaxRetries > 0 {
		gen = NewRetrying(gen, opts.MaxRetries, opts.RetryInterval, opts.Logger)
	}
	if opts.Agentic {
		gen = NewReviewing(gen, completer, opts.Logger)
	}
	return gen
}

func modelOr(model, fallback string) string {
	if strings.TrimSpace(model) == "" {
		return fallback
	}
	return model
}
