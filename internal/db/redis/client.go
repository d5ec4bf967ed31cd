package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// Compile-time checks.
var (
	_ db.Store   = (*Store)(nil)
	_ db.KVStore = (*Store)(nil)
)

// Default index and key prefix for the document collection.
const (
	DefaultIndex     = "docvec:idx"
	DefaultKeyPrefix = "docvec:doc:"
)

// Config holds connection parameters for a Redis or Valkey store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	Index     string
	KeyPrefix string
	// ServerSort enables FT.SEARCH SORTBY for ordered queries (Redis 8+).
	// valkey-search has no SORTBY; ordered pages are then sorted client-side.
	ServerSort bool
}

// Store implements db.Store over FT.SEARCH vector indexes via rueidis.
type Store struct {
	client     rueidis.Client
	index      string
	keyPrefix  string
	serverSort bool
}

// NewStore creates a Redis/Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg), nil
}

func newStore(client rueidis.Client, cfg Config) *Store {
	s := &Store{
		client:     client,
		index:      cfg.Index,
		keyPrefix:  cfg.KeyPrefix,
		serverSort: cfg.ServerSort,
	}
	if s.index == "" {
		s.index = DefaultIndex
	}
	if s.keyPrefix == "" {
		s.keyPrefix = DefaultKeyPrefix
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

func (s *Store) docKey(id string) string {
	return s.keyPrefix + id
}

// wrapErr attaches the server error prefix (ERR, WRONGTYPE, ...) as the error code.
func wrapErr(op string, err error) error {
	dbErr := &db.Error{Op: op, Err: err}
	if re, ok := rueidis.IsRedisErr(err); ok {
		if code, _, found := strings.Cut(re.Error(), " "); found {
			dbErr.Code = code
		}
	}
	return dbErr
}

// partitionFilter renders the filtered strategy's predicate as an escaped TAG clause.
// TAG values cannot be bound through PARAMS on every server, so the value is escaped instead.
// A cross-partition query matches every document.
func partitionFilter(q query.SearchQuery) string {
	if q.CrossPartition() {
		return "*"
	}
	p := q.Partition()
	return fmt.Sprintf("(@%s:{%s})", p.Field(), tagEscaper.Replace(p.Value()))
}
