package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
)

type sqlRows struct {
	rows *sql.Rows
	cur  db.Row
	err  error
}

func (r *sqlRows) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = wrapErr(db.OpSearch, err)
		}
		return false
	}

	var (
		doc                       domain.Document
		typ, title, desc, partKey sql.NullString
		rating                    sql.NullFloat64
		year                      sql.NullInt64
		score                     float64
	)
	if err := r.rows.Scan(&doc.ID, &typ, &title, &rating, &year, &desc, &partKey, &score); err != nil {
		r.err = wrapErr(db.OpSearch, fmt.Errorf("scan: %w", err))
		return false
	}
	doc.Type, doc.Title, doc.Description, doc.PartKey = typ.String, title.String, desc.String, partKey.String
	if rating.Valid {
		v := rating.Float64
		doc.Rating = &v
	}
	doc.ReleaseYear = int(year.Int64)
	r.cur = db.Row{Document: doc, Score: score}
	return true
}

func (r *sqlRows) Row() db.Row { return r.cur }

func (r *sqlRows) Err() error { return r.err }

func (r *sqlRows) Close() error { return r.rows.Close() }

// UpsertDocument inserts or replaces the document row keyed by id.
func (s *Store) UpsertDocument(ctx context.Context, item *db.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("document id is required")
	}
	d := item.Document
	var rating any
	if d.Rating != nil {
		rating = *d.Rating
	}
	var body any
	if len(item.Body) > 0 {
		body = string(item.Body)
	}
	partKey := d.PartKey
	if partKey == "" {
		partKey = item.PartitionKey
	}

	_, err := s.db.ExecContext(ctx, buildUpsert(s.table),
		item.ID, d.Type, d.Title, rating, d.ReleaseYear, d.Description, partKey,
		pgvector.NewVector(d.DocVector), body,
	)
	if err != nil {
		return wrapErr(db.OpUpsert, err)
	}
	return nil
}
