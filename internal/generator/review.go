package generator

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const passVerdict = "STATUS: PASS"

// Reviewing runs a critique pass over every generated section and asks for
// one refinement when the reviewer finds issues. Review failures never fail
// the generation: the unreviewed draft is kept.
type Reviewing struct {
	inner         Generator
	reviewer      Completer
	promptBuilder *PromptBuilder
	logger        *zap.Logger
}

func NewReviewing(inner Generator, reviewer Completer, logger *zap.Logger) *Reviewing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewing{
		inner:         inner,
		reviewer:      reviewer,
		promptBuilder: &PromptBuilder{},
		logger:        logger,
	}
}

func (r *Reviewing) Generate(ctx context.Context, req Request) (string, error) {
	draft, err := r.inner.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	key := req.Signature.Key()

	critique, err := r.reviewer.Complete(ctx, Prompt{
		System: reviewerSystemPrompt,
		User:   r.promptBuilder.BuildCritiquePrompt(req.Signature, draft),
	})
	if err != nil {
		r.logger.Warn("critique failed, keeping draft", zap.String("key", key), zap.Error(err))
		return draft, nil
	}
	if strings.Contains(critique, passVerdict) {
		return draft, nil
	}

	r.logger.Info("refining section after review", zap.String("key", key))
	refined, err := r.reviewer.Complete(ctx, Prompt{
		System:      writerSystemPrompt,
		User:        r.promptBuilder.BuildRefinePrompt(req.Signature, draft, critique),
		Temperature: 0.1,
	})
	if err != nil {
		r.logger.Warn("refine failed, keeping draft", zap.String("key", key), zap.Error(err))
		return draft, nil
	}
	refined = cleanMarkdownOutput(refined)
	if refined == "" {
		return draft, nil
	}
	return refined, nil
}
