// Package cosmos implements the document store over Azure Cosmos DB for NoSQL.
package cosmos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
)

var _ db.Store = (*Store)(nil)

// Config holds Cosmos DB connection parameters.
type Config struct {
	Endpoint       string
	Key            string
	Database       string
	Container      string
	PartitionField string
}

// container is the slice of *azcosmos.ContainerClient the store uses.
type container interface {
	Read(ctx context.Context, o *azcosmos.ReadContainerOptions) (azcosmos.ContainerResponse, error)
	NewQueryItemsPager(
		query string, pk azcosmos.PartitionKey, o *azcosmos.QueryOptions,
	) *runtime.Pager[azcosmos.QueryItemsResponse]
	UpsertItem(
		ctx context.Context, pk azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions,
	) (azcosmos.ItemResponse, error)
}

// Store implements db.Store over a single Cosmos container.
type Store struct {
	container      container
	partitionField string
}

// NewStore creates a key-authenticated Cosmos store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Database == "" || cfg.Container == "" {
		return nil, fmt.Errorf("endpoint, database and container are required")
	}

	cred, err := azcosmos.NewKeyCredential(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("key credential: %w", err)
	}
	client, err := azcosmos.NewClientWithKey(cfg.Endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	c, err := client.NewContainer(cfg.Database, cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("container %s/%s: %w", cfg.Database, cfg.Container, err)
	}
	return newStore(c, cfg), nil
}

func newStore(c container, cfg Config) *Store {
	s := &Store{container: c, partitionField: cfg.PartitionField}
	if s.partitionField == "" {
		s.partitionField = domain.DefaultPartitionField
	}
	return s
}

// Ping reads the container properties.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.container.Read(ctx, nil); err != nil {
		return wrapErr(db.OpPing, err)
	}
	return nil
}

// Close is a no-op: the SDK client holds no resources that need releasing.
func (s *Store) Close() {}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

// wrapErr carries the Cosmos error code, or the HTTP status when no code is reported.
func wrapErr(op string, err error) error {
	dbErr := &db.Error{Op: op, Err: err}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		dbErr.Code = re.ErrorCode
		if dbErr.Code == "" && re.StatusCode != 0 {
			dbErr.Code = strconv.Itoa(re.StatusCode)
		}
	}
	return dbErr
}
