// Package search executes built vector queries against the document store.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchVector(ctx context.Context, q query.SearchQuery) (db.Rows, error)
}

// Executor submits SearchQuery values to the store. It never retries.
type Executor struct {
	store store
}

// New creates a search executor.
func New(s store) *Executor {
	return &Executor{store: s}
}

// Execute submits q and returns a cursor over at most q.Limit() results.
// Queries without a partition filter run cross-partition; filtered queries are
// scoped to their partition by the driver.
func (e *Executor) Execute(ctx context.Context, q query.SearchQuery) (*Cursor, error) {
	if q.IsZero() {
		return nil, fmt.Errorf("execute: query is not built: %w", domain.ErrInvalidQuery)
	}

	rows, err := e.store.SearchVector(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			return nil, fmt.Errorf("execute: %w", err)
		}
		return nil, queryError(db.OpSearch, err)
	}
	return newCursor(ctx, rows, q), nil
}

// queryError converts a store failure into a QueryExecutionError carrying the store's code.
func queryError(op string, err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		msg := ""
		if dbErr.Err != nil {
			msg = dbErr.Err.Error()
		}
		return domain.NewQueryExecutionError(dbErr.Op, dbErr.Code, msg, err)
	}
	return domain.NewQueryExecutionError(op, "", err.Error(), err)
}
