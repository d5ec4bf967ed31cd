package search

import (
	"context"
	"iter"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	"github.com/kailas-cloud/docvec/internal/domain/search/result"
)

// Cursor is a lazy, single-use stream of search results.
// Rows are pulled from the store only as Next is called.
type Cursor struct {
	ctx       context.Context //nolint:containedctx // bound to one Execute call, like sql.Rows
	rows      db.Rows
	limit     int
	partition *query.Partition

	cur    result.Result
	seen   int
	err    error
	closed bool
}

func newCursor(ctx context.Context, rows db.Rows, q query.SearchQuery) *Cursor {
	return &Cursor{ctx: ctx, rows: rows, limit: q.Limit(), partition: q.Partition()}
}

// Next advances to the next result. It returns false when the stream is exhausted,
// the limit is reached, or an error occurred (see Err).
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.seen >= c.limit {
		_ = c.Close()
		return false
	}

	for c.rows.Next(c.ctx) {
		row := c.rows.Row()
		r := result.New(row.Document, row.Score)
		if !c.inPartition(&r) {
			continue
		}
		c.cur = r
		c.seen++
		return true
	}

	// drivers may report a cancellation as their own error
	if err := c.ctx.Err(); err != nil {
		c.err = err
	} else if err := c.rows.Err(); err != nil {
		c.err = queryError(db.OpSearch, err)
	}
	_ = c.Close()
	return false
}

// inPartition drops rows the store returned outside the requested partition.
func (c *Cursor) inPartition(r *result.Result) bool {
	if c.partition == nil {
		return true
	}
	v, ok := r.FieldValue(c.partition.Field())
	return !ok || v == c.partition.Value()
}

// Result returns the current result.
func (c *Cursor) Result() result.Result { return c.cur }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying store cursor. Safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rows.Close(); err != nil {
		return queryError(db.OpSearch, err)
	}
	return nil
}

// All returns a range-over-func iterator. A terminal error is yielded once with a zero Result.
// A consumed cursor yields nothing.
func (c *Cursor) All() iter.Seq2[result.Result, error] {
	return func(yield func(result.Result, error) bool) {
		defer func() { _ = c.Close() }()
		for c.Next() {
			if !yield(c.Result(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(result.Result{}, err)
		}
	}
}

// Collect drains the cursor into a slice.
func (c *Cursor) Collect() ([]result.Result, error) {
	defer func() { _ = c.Close() }()
	out := make([]result.Result, 0, min(c.limit, 64))
	for c.Next() {
		out = append(out, c.Result())
	}
	return out, c.Err()
}
