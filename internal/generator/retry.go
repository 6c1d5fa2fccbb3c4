package generator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Retrying re-issues failed generations with exponential backoff. Errors the
// provider marks as permanent (bad key, bad request) are not retried.
type Retrying struct {
	inner           Generator
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
}

func NewRetrying(inner Generator, maxRetries int, initialInterval time.Duration, logger *zap.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialInterval <= 0 {
		initialInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		inner:           inner,
		maxRetries:      uint64(maxRetries),
		initialInterval: initialInterval,
		logger:          logger,
	}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	key := req.Signature.Key()
	var out string
	op := func() error {
		text, err := r.inner.Generate(ctx, req)
		if err != nil {
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialInterval
	eb.MaxInterval = 30 * r.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("retrying generation",
			zap.String("key", key),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", NewGenerationError(key, err)
	}
	return out, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
