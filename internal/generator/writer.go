package generator

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Prompt is one chat turn sent to a Completer.
type Prompt struct {
	System      string
	User        string
	Temperature float32
}

// Completer is the raw text-completion capability of a model provider.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

var errEmptyOutput = errors.New("model returned empty text")

// Writer is the Generator backed by a model: it builds the endpoint prompt,
// completes it and cleans the answer.
type Writer struct {
	completer     Completer
	promptBuilder *PromptBuilder
	temperature   float32
	logger        *zap.Logger
}

func NewWriter(c Completer, temperature float32, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		completer:     c,
		promptBuilder: &PromptBuilder{},
		temperature:   temperature,
		logger:        logger,
	}
}

func (w *Writer) Generate(ctx context.Context, req Request) (string, error) {
	key := req.Signature.Key()
	text, err := w.completer.Complete(ctx, Prompt{
		System:      writerSystemPrompt,
		User:        w.promptBuilder.BuildEndpointPrompt(req),
		Temperature: w.temperature,
	})
	if err != nil {
		return "", NewGenerationError(key, err)
	}
	text = cleanMarkdownOutput(text)
	if strings.TrimSpace(text) == "" {
		return "", NewGenerationError(key, errEmptyOutput)
	}
	w.logger.Debug("generated section", zap.String("key", key), zap.Int("chars", len(text)))
	return text, nil
}
