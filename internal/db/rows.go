package db

import (
	"context"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// ProjectedFields is the document projection every vector search returns,
// plus the distance alias.
var ProjectedFields = []string{"id", "type", "title", "rating", "release_year", "description", "partKey"}

// ScoreAlias is the name the distance is reported under.
const ScoreAlias = "similarityScore"

// Row is one search hit as reported by the store.
type Row struct {
	Document domain.Document
	Score    float64
}

// Rows is a pull-based cursor over search hits.
// Next advances to the next row, fetching further pages from the store as needed.
type Rows interface {
	Next(ctx context.Context) bool
	Row() Row
	Err() error
	Close() error
}

// Item is a document ready to be written, with its raw JSON body.
type Item struct {
	ID           string
	PartitionKey string
	Document     domain.Document
	Body         []byte
}

// SliceRows is Rows over an already materialized page.
type SliceRows struct {
	rows []Row
	pos  int
}

// NewSliceRows creates a cursor over rows.
func NewSliceRows(rows []Row) *SliceRows {
	return &SliceRows{rows: rows, pos: -1}
}

// Next advances the cursor.
func (s *SliceRows) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if s.pos+1 >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

// Row returns the current row.
func (s *SliceRows) Row() Row {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return Row{}
	}
	return s.rows[s.pos]
}

// Err always returns nil: the page was fetched before construction.
func (s *SliceRows) Err() error { return nil }

// Close releases the page.
func (s *SliceRows) Close() error {
	s.rows = nil
	return nil
}
