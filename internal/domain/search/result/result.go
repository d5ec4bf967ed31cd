package result

import (
	"strconv"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// Result is a single search hit: a document projection and its distance to the query.
type Result struct {
	document domain.Document
	score    float64
}

// New creates a search result. The document vector is never part of the projection.
func New(doc domain.Document, score float64) Result {
	doc.DocVector = nil
	return Result{document: doc, score: score}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.document.ID }

// Score returns the store-reported distance. Smaller is more similar.
func (r *Result) Score() float64 { return r.score }

// Document returns the projected document fields.
func (r *Result) Document() domain.Document { return r.document }

// FieldValue returns the projected value of a field as a string.
// ok is false for fields outside the projection.
func (r *Result) FieldValue(field string) (value string, ok bool) {
	switch field {
	case "id":
		return r.document.ID, true
	case "type":
		return r.document.Type, true
	case "title":
		return r.document.Title, true
	case "description":
		return r.document.Description, true
	case "release_year":
		return strconv.Itoa(r.document.ReleaseYear), true
	case "rating":
		if r.document.Rating == nil {
			return "", true
		}
		return strconv.FormatFloat(*r.document.Rating, 'f', -1, 64), true
	case domain.DefaultPartitionField:
		return r.document.PartKey, true
	default:
		return "", false
	}
}
