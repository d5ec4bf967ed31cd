package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/metrics"
)

// DefaultMinInterval is the minimum time a successful Generate call occupies its caller.
const DefaultMinInterval = 500 * time.Millisecond

// GeneratorConfig controls throttling toward the embedding provider.
type GeneratorConfig struct {
	// RequestsPerSecond is the aggregate rate shared by all callers. When zero, the
	// bucket refills once per MinInterval instead, or never blocks if both are zero.
	RequestsPerSecond float64
	// Burst is the bucket size; values below 1 are treated as 1.
	Burst int
	// MinInterval holds the caller after a successful call until this much time has
	// passed since the call began. Zero disables the hold.
	MinInterval time.Duration
	// Dimensions, when positive, is the vector length every response must have.
	Dimensions int
}

// Generator turns text into an embedding vector through a shared rate limit.
// It never retries: failures surface as domain.ErrEmbeddingService.
type Generator struct {
	inner       domain.Embedder
	limiter     *rate.Limiter
	minInterval time.Duration
	dimensions  int
	logger      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces the time source and the sleep used for the minimum interval hold.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) GeneratorOption {
	return func(g *Generator) {
		g.now = now
		g.sleep = sleep
	}
}

// NewGenerator wraps inner with a token bucket shared by every caller of the returned Generator.
func NewGenerator(
	inner domain.Embedder, cfg GeneratorConfig, logger *zap.Logger, opts ...GeneratorOption,
) *Generator {
	limit, burst := rate.Inf, max(cfg.Burst, 1)
	switch {
	case cfg.RequestsPerSecond > 0:
		limit = rate.Limit(cfg.RequestsPerSecond)
	case cfg.MinInterval > 0:
		// concurrent callers share the interval instead of each holding its own
		limit, burst = rate.Every(cfg.MinInterval), 1
	}

	g := &Generator{
		inner:       inner,
		limiter:     rate.NewLimiter(limit, burst),
		minInterval: cfg.MinInterval,
		dimensions:  cfg.Dimensions,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the embedding for text.
func (g *Generator) Generate(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty text: %w", domain.ErrEmbeddingService)
	}

	start := g.now()

	if err := g.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.EmbeddingThrottleWait.Observe(g.now().Sub(start).Seconds())

	result, err := g.inner.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("generate: %w", err)
	}
	if g.dimensions > 0 && result.Dimensions() != g.dimensions {
		return domain.EmbeddingResult{}, fmt.Errorf("generate: got %d dimensions, want %d: %w: %w",
			result.Dimensions(), g.dimensions, domain.ErrVectorDimMismatch, domain.ErrEmbeddingService)
	}

	if hold := g.minInterval - g.now().Sub(start); hold > 0 {
		if err := g.sleep(ctx, hold); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("min interval hold: %w", err)
		}
	}

	g.logger.Debug("Embedding generated",
		zap.Int("dimensions", result.Dimensions()),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Duration("elapsed", g.now().Sub(start)),
	)
	return result, nil
}

// Embed implements domain.Embedder so the generator can sit in a decorator chain.
func (g *Generator) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return g.Generate(ctx, text)
}

// HealthCheck proxies to the inner embedder when it supports health checks.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if hc, ok := g.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
