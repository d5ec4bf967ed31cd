package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docvec/internal/db"
)

// UpsertDocument stores the item body as a JSON document under the collection key prefix.
func (s *Store) UpsertDocument(ctx context.Context, item *db.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("document id is required")
	}
	cmd := s.b().JsonSet().Key(s.docKey(item.ID)).Path("$").Value(string(item.Body)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapErr(db.OpUpsert, err)
	}
	return nil
}
