package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/metrics"
)

// RetryPolicy configures RetryEmbedder.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryEmbedder retries calls rejected with domain.ErrRateLimited using exponential backoff.
// Every other error is returned on first occurrence.
type RetryEmbedder struct {
	inner  domain.Embedder
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryEmbedder wraps inner with the retry policy.
func NewRetryEmbedder(inner domain.Embedder, policy RetryPolicy, logger *zap.Logger) *RetryEmbedder {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = time.Second
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 30 * time.Second
	}
	return &RetryEmbedder{inner: inner, policy: policy, logger: logger}
}

// Embed delegates to inner, retrying rate-limited attempts.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialInterval
	exp.Multiplier = 2
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempt >= r.policy.MaxAttempts {
			return domain.EmbeddingResult{}, err
		}

		wait := exp.NextBackOff()
		metrics.EmbeddingRetriesTotal.Inc()
		r.logger.Warn("Embedding rate limited, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return domain.EmbeddingResult{}, fmt.Errorf("retry wait: %w", ctx.Err())
		}
	}
}

// HealthCheck proxies to the inner embedder when it supports health checks.
func (r *RetryEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
