package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// Store is the document store facade combining all sub-interfaces.
type Store interface {
	Pinger
	VectorSearcher
	DocumentWriter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorSearcher runs a validated vector query and streams the matching rows.
// Drivers bind the vector and the partition value as query parameters.
type VectorSearcher interface {
	SearchVector(ctx context.Context, q query.SearchQuery) (Rows, error)
}

// DocumentWriter stores a document together with its vector.
type DocumentWriter interface {
	UpsertDocument(ctx context.Context, item *Item) error
}

// KVStore provides simple key-value operations. Optional: not every driver has it.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// WaitForReady polls p until it answers or timeout expires.
func WaitForReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := p.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return &Error{Op: OpPing, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
