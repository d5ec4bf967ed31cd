package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
	reposearch "github.com/kailas-cloud/docvec/internal/repository/search"
)

// --- Mocks ---

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockStore struct {
	rows  []db.Row
	err   error
	lastQ query.SearchQuery
	calls int
}

func (m *mockStore) SearchVector(_ context.Context, q query.SearchQuery) (db.Rows, error) {
	m.calls++
	m.lastQ = q
	if m.err != nil {
		return nil, m.err
	}
	return db.NewSliceRows(m.rows), nil
}

func rows(n int, partition string) []db.Row {
	out := make([]db.Row, n)
	for i := range out {
		out[i] = db.Row{
			Document: domain.Document{ID: fmt.Sprintf("doc-%d", i), PartKey: partition},
			Score:    float64(i) / 10,
		}
	}
	return out
}

func newTestService(emb *mockEmbedder, st *mockStore, cfg Config) *Service {
	return New(emb, reposearch.New(st), cfg, zap.NewNop())
}

// --- Tests ---

func TestSearch_Defaults(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	st := &mockStore{rows: rows(20, "1995")}
	svc := newTestService(emb, st, Config{})

	results, err := svc.Search(context.Background(), Request{Query: "heist movies"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != DefaultLimit {
		t.Errorf("expected %d results, got %d", DefaultLimit, len(results))
	}
	if st.lastQ.Strategy() != strategy.Ordered || st.lastQ.Limit() != DefaultLimit {
		t.Errorf("unexpected query: strategy=%s limit=%d", st.lastQ.Strategy(), st.lastQ.Limit())
	}
	if !st.lastQ.CrossPartition() {
		t.Error("unfiltered search must be cross-partition")
	}
}

func TestSearch_PartitionImpliesFiltered(t *testing.T) {
	st := &mockStore{rows: rows(3, "")}
	for i := range st.rows {
		st.rows[i].Document.ReleaseYear = 1995
	}
	svc := newTestService(&mockEmbedder{vec: []float32{1}}, st, Config{PartitionField: "release_year"})

	results, err := svc.Search(context.Background(), Request{Query: "x", Partition: "1995", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
	p := st.lastQ.Partition()
	if st.lastQ.Strategy() != strategy.Filtered || p == nil || p.Field() != "release_year" || p.Value() != "1995" {
		t.Errorf("unexpected query partition: %+v", p)
	}
}

func TestSearch_RejectsBeforeEmbedding(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Query: "  "}},
		{"unknown strategy", Request{Query: "x", Strategy: "fuzzy"}},
		{"negative limit", Request{Query: "x", Limit: -1}},
		{"limit above max", Request{Query: "x", Limit: 51}},
		{"filtered without partition", Request{Query: "x", Strategy: strategy.Filtered}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emb := &mockEmbedder{vec: []float32{1}}
			st := &mockStore{}
			svc := newTestService(emb, st, Config{MaxLimit: 50})

			_, err := svc.Search(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
			if emb.calls != 0 || st.calls != 0 {
				t.Errorf("rejected request reached embed=%d store=%d", emb.calls, st.calls)
			}
		})
	}
}

func TestSearch_PartitionWithUnorderedRejected(t *testing.T) {
	svc := newTestService(&mockEmbedder{vec: []float32{1}}, &mockStore{}, Config{})
	_, err := svc.Search(context.Background(), Request{Query: "x", Strategy: strategy.Unordered, Partition: "a"})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch_EmbeddingError(t *testing.T) {
	st := &mockStore{}
	svc := newTestService(&mockEmbedder{err: fmt.Errorf("status 500: %w", domain.ErrEmbeddingService)}, st, Config{})

	_, err := svc.Search(context.Background(), Request{Query: "x"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if st.calls != 0 {
		t.Error("store must not be queried without a vector")
	}
}

func TestSearch_StoreError(t *testing.T) {
	st := &mockStore{err: &db.Error{Op: db.OpSearch, Code: "ERR", Err: errors.New("no such index")}}
	svc := newTestService(&mockEmbedder{vec: []float32{1}}, st, Config{})

	_, err := svc.Search(context.Background(), Request{Query: "x"})
	var qe *domain.QueryExecutionError
	if !errors.As(err, &qe) || qe.Code != "ERR" {
		t.Fatalf("expected QueryExecutionError with code, got %v", err)
	}
	if domain.ErrorKind(err) != domain.KindQueryExecution {
		t.Errorf("unexpected kind %q", domain.ErrorKind(err))
	}
}

func TestOpen_IsLazy(t *testing.T) {
	st := &mockStore{rows: rows(4, "")}
	svc := newTestService(&mockEmbedder{vec: []float32{1}}, st, Config{DefaultStrategy: strategy.Unordered})

	cur, err := svc.Open(context.Background(), Request{Query: "x", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for r, err := range cur.All() {
		if err != nil {
			t.Fatalf("iteration error: %v", err)
		}
		ids = append(ids, r.ID())
	}
	if len(ids) != 2 || ids[0] != "doc-0" || ids[1] != "doc-1" {
		t.Errorf("unexpected ids: %v", ids)
	}
}
