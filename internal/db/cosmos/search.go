package cosmos

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// SearchVector runs a VectorDistance query. Pages are fetched lazily as the rows are read.
func (s *Store) SearchVector(_ context.Context, q query.SearchQuery) (db.Rows, error) {
	if q.IsZero() {
		return nil, fmt.Errorf("search query is not built: %w", domain.ErrInvalidQuery)
	}

	text, params := buildQuery(q, s.partitionField)
	pager := s.container.NewQueryItemsPager(text, s.partitionKey(q), &azcosmos.QueryOptions{
		QueryParameters: params,
		PageSizeHint:    int32(min(q.Limit(), 1000)), //nolint:gosec // bounded above
	})
	return &pagerRows{pager: pager, limit: q.Limit()}, nil
}

type pagerRows struct {
	pager *runtime.Pager[azcosmos.QueryItemsResponse]
	buf   [][]byte
	cur   db.Row
	seen  int
	limit int
	err   error
}

func (r *pagerRows) Next(ctx context.Context) bool {
	if r.err != nil || r.pager == nil || r.seen >= r.limit {
		return false
	}
	for len(r.buf) == 0 {
		if !r.pager.More() {
			return false
		}
		page, err := r.pager.NextPage(ctx)
		if err != nil {
			r.err = wrapErr(db.OpSearch, err)
			return false
		}
		r.buf = page.Items
	}

	item := r.buf[0]
	r.buf = r.buf[1:]
	row, err := decodeRow(item)
	if err != nil {
		r.err = &db.Error{Op: db.OpSearch, Err: err}
		return false
	}
	r.cur = row
	r.seen++
	return true
}

func (r *pagerRows) Row() db.Row { return r.cur }

func (r *pagerRows) Err() error { return r.err }

func (r *pagerRows) Close() error {
	r.pager = nil
	r.buf = nil
	return nil
}

type rowDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Rating      *float64        `json:"rating"`
	ReleaseYear int             `json:"release_year"`
	Description string          `json:"description"`
	PartKey     json.RawMessage `json:"partKey"`
	Score       float64         `json:"similarityScore"`
}

func decodeRow(item []byte) (db.Row, error) {
	var dto rowDTO
	if err := json.Unmarshal(item, &dto); err != nil {
		return db.Row{}, fmt.Errorf("decode row: %w", err)
	}
	return db.Row{
		Document: domain.Document{
			ID:          dto.ID,
			Type:        dto.Type,
			Title:       dto.Title,
			Rating:      dto.Rating,
			ReleaseYear: dto.ReleaseYear,
			Description: dto.Description,
			PartKey:     scalarString(dto.PartKey),
		},
		Score: dto.Score,
	}, nil
}

// scalarString renders a JSON scalar as text: strings unquoted, numbers as written.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil && raw[0] == '"' {
		return s
	}
	return string(raw)
}
