// Package search answers natural-language queries: embed, build, execute.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	"github.com/kailas-cloud/docvec/internal/domain/search/result"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
	"github.com/kailas-cloud/docvec/internal/metrics"
	reposearch "github.com/kailas-cloud/docvec/internal/repository/search"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultLimit    = 10
	DefaultMaxLimit = 1000
)

// Config holds search defaults.
type Config struct {
	DefaultStrategy strategy.Strategy
	DefaultLimit    int
	MaxLimit        int
	PartitionField  string
}

// Request is one search call. Zero Strategy and Limit fall back to the configured defaults.
type Request struct {
	Query     string
	Strategy  strategy.Strategy
	Limit     int
	Partition string
}

// Service handles vector search for text queries.
type Service struct {
	embed  Embedder
	exec   Executor
	cfg    Config
	logger *zap.Logger
}

// New creates a search service.
func New(embed Embedder, exec Executor, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = strategy.Ordered
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.PartitionField == "" {
		cfg.PartitionField = domain.DefaultPartitionField
	}
	return &Service{embed: embed, exec: exec, cfg: cfg, logger: logger}
}

// Search runs the query and collects every result.
func (s *Service) Search(ctx context.Context, req Request) ([]result.Result, error) {
	start := time.Now()
	st := s.strategyOf(req)
	if !st.IsValid() {
		st = "invalid"
	}

	results, err := s.search(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(st), status).Inc()
	metrics.SearchDuration.WithLabelValues(string(st)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("Search failed",
			zap.String("strategy", string(st)),
			zap.String("kind", domain.ErrorKind(err)),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.SearchResults.WithLabelValues(string(st)).Observe(float64(len(results)))
	return results, nil
}

func (s *Service) search(ctx context.Context, req Request) ([]result.Result, error) {
	cur, err := s.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	results, err := cur.Collect()
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}

// Open embeds the query text and returns a lazy cursor over the results.
// The caller must drain or Close the cursor.
func (s *Service) Open(ctx context.Context, req Request) (*reposearch.Cursor, error) {
	q, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	cur, err := s.exec.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("execute %s search: %w", q.Strategy(), err)
	}
	return cur, nil
}

func (s *Service) build(ctx context.Context, req Request) (query.SearchQuery, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return query.SearchQuery{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidQuery)
	}

	st := s.strategyOf(req)
	if !st.IsValid() {
		return query.SearchQuery{}, fmt.Errorf("unknown strategy %q: %w", st, domain.ErrInvalidQuery)
	}
	if st.RequiresPartition() && req.Partition == "" {
		return query.SearchQuery{}, fmt.Errorf("%s search needs a partition value: %w", st, domain.ErrInvalidQuery)
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < 0 || limit > s.cfg.MaxLimit {
		return query.SearchQuery{}, fmt.Errorf(
			"limit %d outside 1..%d: %w", limit, s.cfg.MaxLimit, domain.ErrInvalidQuery,
		)
	}

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return query.SearchQuery{}, fmt.Errorf("vectorize query: %w", err)
	}

	q, err := query.Build(st, emb.Embedding, limit, req.Partition, query.WithPartitionField(s.cfg.PartitionField))
	if err != nil {
		return query.SearchQuery{}, fmt.Errorf("build query: %w", err)
	}
	return q, nil
}

func (s *Service) strategyOf(req Request) strategy.Strategy {
	if req.Strategy != "" {
		return req.Strategy
	}
	if req.Partition != "" {
		return strategy.Filtered
	}
	return s.cfg.DefaultStrategy
}
