package cosmos

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/kailas-cloud/docvec/internal/db"
)

// UpsertDocument writes the item body into its logical partition.
func (s *Store) UpsertDocument(ctx context.Context, item *db.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if item.PartitionKey == "" {
		return fmt.Errorf("document %q: partition key is required", item.ID)
	}
	pk := azcosmos.NewPartitionKeyString(item.PartitionKey)
	if _, err := s.container.UpsertItem(ctx, pk, item.Body, nil); err != nil {
		return wrapErr(db.OpUpsert, err)
	}
	return nil
}
