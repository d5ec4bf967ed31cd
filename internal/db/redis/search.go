package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// SearchVector runs a KNN search via FT.SEARCH. The vector is bound as a PARAMS blob.
func (s *Store) SearchVector(ctx context.Context, q query.SearchQuery) (db.Rows, error) {
	if q.IsZero() {
		return nil, fmt.Errorf("search query is not built: %w", domain.ErrInvalidQuery)
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(s.searchArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapErr(db.OpSearch, err)
	}

	rows, err := parseKNNResult(raw)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	if q.Ordered() && !s.serverSort {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score < rows[j].Score })
	}
	if len(rows) > q.Limit() {
		rows = rows[:q.Limit()]
	}
	return db.NewSliceRows(rows), nil
}

func (s *Store) searchArgs(q query.SearchQuery) []string {
	knn := fmt.Sprintf("%s=>[KNN %d @%s $BLOB AS %s]",
		partitionFilter(q), q.Limit(), domain.VectorField, db.ScoreAlias)

	returnFields := append(append([]string(nil), db.ProjectedFields...), db.ScoreAlias)

	args := make([]string, 0, 16+len(returnFields))
	args = append(args, s.index, knn, "RETURN", strconv.Itoa(len(returnFields)))
	args = append(args, returnFields...)
	if q.Ordered() && s.serverSort {
		args = append(args, "SORTBY", db.ScoreAlias, "ASC")
	}
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.Limit()),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector()),
		"DIALECT", "2",
	)
	return args
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) ([]db.Row, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	rows := make([]db.Row, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		rows = append(rows, rowFromFields(key, parseFieldPairs(fields)))
	}

	return rows, nil
}

func rowFromFields(key string, fields map[string]string) db.Row {
	doc := domain.Document{
		ID:          fields["id"],
		Type:        fields["type"],
		Title:       fields["title"],
		Description: fields["description"],
		PartKey:     fields["partKey"],
	}
	if doc.ID == "" {
		doc.ID = key
	}
	if v, err := strconv.ParseFloat(fields["rating"], 64); err == nil {
		doc.Rating = &v
	}
	if v, err := strconv.Atoi(fields["release_year"]); err == nil {
		doc.ReleaseYear = v
	}

	var score float64
	if v, err := strconv.ParseFloat(fields[db.ScoreAlias], 64); err == nil {
		score = v
	}
	return db.Row{Document: doc, Score: score}
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
