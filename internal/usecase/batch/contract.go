package batch

import (
	"context"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Source is an enumerable collection of documents addressed by a stable name.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// Sink receives each embedded document. doc is the final pretty-printed body.
type Sink interface {
	Write(ctx context.Context, name string, doc []byte, vector []float32) error
}

// TextFunc derives the text to embed from a raw JSON object.
type TextFunc func(doc []byte) (string, error)
