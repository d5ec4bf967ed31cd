package domain

import "fmt"

// EmbeddingField is the reserved top-level key the batch pipeline attaches vectors under.
const EmbeddingField = "embedding"

// VectorField is the store field holding a document's indexed vector.
const VectorField = "docVector"

// DefaultPartitionField is the partition key field used by filtered searches.
const DefaultPartitionField = "partKey"

// Document is the unit of search and storage.
type Document struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ReleaseYear int       `json:"release_year,omitempty"`
	PartKey     string    `json:"partKey,omitempty"`
	DocVector   []float32 `json:"docVector,omitempty"`
}

// Validate checks identity and, when dims > 0, the vector length.
func (d *Document) Validate(dims int) error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if dims > 0 && len(d.DocVector) != dims {
		return fmt.Errorf("document %q: got %d, want %d: %w",
			d.ID, len(d.DocVector), dims, ErrVectorDimMismatch)
	}
	return nil
}
