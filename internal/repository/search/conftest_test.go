package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
)

// memStore is an in-memory vector store scanning documents in insertion order.
type memStore struct {
	docs     []domain.Document
	err      error
	rowsErr  error
	leak     bool // ignore the partition filter, as a misbehaving store would
	lastQ    query.SearchQuery
	rowsRead int

	// cancelErr mimics a driver that records ctx.Err() as its stream error
	cancelErr error
}

func (m *memStore) SearchVector(_ context.Context, q query.SearchQuery) (db.Rows, error) {
	m.lastQ = q
	if m.err != nil {
		return nil, m.err
	}

	vec := q.Vector()
	var rows []db.Row
	for _, d := range m.docs {
		if p := q.Partition(); p != nil && !m.leak && d.PartKey != p.Value() {
			continue
		}
		rows = append(rows, db.Row{Document: d, Score: sqDistance(vec, d.DocVector)})
	}
	if q.Ordered() {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score < rows[j].Score })
	}
	// the store may return more rows than asked; the cursor enforces the limit
	return &countingRows{SliceRows: db.NewSliceRows(rows), store: m}, nil
}

type countingRows struct {
	*db.SliceRows
	store *memStore
}

func (c *countingRows) Next(ctx context.Context) bool {
	if !c.SliceRows.Next(ctx) {
		return false
	}
	c.store.rowsRead++
	return true
}

func (c *countingRows) Err() error {
	if c.store.cancelErr != nil {
		return c.store.cancelErr
	}
	return c.store.rowsErr
}

func sqDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

func newCollection(n, dims int, partitions []string, seed uint64) []domain.Document {
	r := rand.New(rand.NewPCG(seed, seed))
	docs := make([]domain.Document, n)
	for i := range docs {
		v := make([]float32, dims)
		for j := range v {
			v[j] = r.Float32()
		}
		docs[i] = domain.Document{
			ID:          fmt.Sprintf("doc-%03d", i),
			Title:       fmt.Sprintf("Title %d", i),
			ReleaseYear: 2000 + i%20,
			PartKey:     partitions[i%len(partitions)],
			DocVector:   v,
		}
	}
	return docs
}

func mustBuild(t *testing.T, s strategy.Strategy, vec []float32, limit int, partition string) query.SearchQuery {
	t.Helper()
	q, err := query.Build(s, vec, limit, partition)
	if err != nil {
		t.Fatalf("query.Build: %v", err)
	}
	return q
}
