package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/metrics"
)

// Call outcomes recorded by InstrumentedEmbedder.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// InstrumentedEmbedder measures the latency callers actually see: cache lookups, the
// shared rate limit, the minimum interval hold and retries all count.
// Per-request provider metrics are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	logger   *zap.Logger
	now      func() time.Time
}

// NewInstrumentedEmbedder wraps the outermost embedder of a chain.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		logger:   logger,
		now:      time.Now,
	}
}

// Embed delegates to the inner embedder and records the outcome.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := p.now()
	result, err := p.inner.Embed(ctx, text)
	elapsed := p.now().Sub(start)

	outcome := Outcome(err)
	metrics.EmbeddingCallDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		log := p.logger.Warn
		if outcome == OutcomeCanceled {
			log = p.logger.Debug
		}
		log("Embedding failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("outcome", outcome),
			zap.Int("text_len", len(text)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("elapsed", elapsed),
		zap.Int("dimensions", result.Dimensions()),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Bool("cached", result.TotalTokens == 0),
	)
	return result, nil
}

// HealthCheck proxies to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Outcome classifies an embedding error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrRateLimited):
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}
