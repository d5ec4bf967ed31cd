package search

import (
	"context"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	reposearch "github.com/kailas-cloud/docvec/internal/repository/search"
)

// Executor runs built queries against the document store.
type Executor interface {
	Execute(ctx context.Context, q query.SearchQuery) (*reposearch.Cursor, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
