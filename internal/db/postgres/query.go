package postgres

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildQuery renders q as SQL. The vector is $1; the partition value and the limit follow
// as bind parameters. The partition column is compared as text so any column type works.
func buildQuery(table string, q query.SearchQuery) (string, []any) {
	distance := ident(domain.VectorField) + " <=> $1"
	args := []any{pgvector.NewVector(q.Vector())}

	cols := make([]string, 0, len(db.ProjectedFields)+1)
	for _, f := range db.ProjectedFields {
		cols = append(cols, ident(f))
	}
	cols = append(cols, distance+" AS "+ident(db.ScoreAlias))

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(ident(table))

	if p := q.Partition(); p != nil {
		args = append(args, p.Value())
		sb.WriteString(" WHERE ")
		sb.WriteString(ident(p.Field()))
		sb.WriteString("::text = $")
		sb.WriteString(strconv.Itoa(len(args)))
	}
	if q.Ordered() {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(distance)
	}
	args = append(args, q.Limit())
	sb.WriteString(" LIMIT $")
	sb.WriteString(strconv.Itoa(len(args)))
	return sb.String(), args
}

func buildUpsert(table string) string {
	cols := append(append([]string(nil), db.ProjectedFields...), domain.VectorField, "body")
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		quoted[i] = ident(c)
		placeholders[i] = "$" + strconv.Itoa(i+1)
		if c != "id" {
			updates = append(updates, quoted[i]+" = EXCLUDED."+quoted[i])
		}
	}
	return "INSERT INTO " + ident(table) + " (" + strings.Join(quoted, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (" + ident("id") + ") DO UPDATE SET " +
		strings.Join(updates, ", ")
}
