// Package postgres implements the document store over PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

var _ db.Store = (*Store)(nil)

// DefaultTable holds the document collection.
const DefaultTable = "documents"

// Config holds PostgreSQL connection parameters.
type Config struct {
	DSN   string
	Table string
}

// conn is the slice of *sql.DB the store uses.
type conn interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Store implements db.Store over a pgvector table.
type Store struct {
	db    conn
	table string
}

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	s, err := newStore(sqlDB, cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func newStore(c conn, cfg Config) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !query.IsValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: c, table: table}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr(db.OpPing, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

// SearchVector runs a pgvector distance query.
func (s *Store) SearchVector(ctx context.Context, q query.SearchQuery) (db.Rows, error) {
	if q.IsZero() {
		return nil, fmt.Errorf("search query is not built: %w", domain.ErrInvalidQuery)
	}
	text, args := buildQuery(s.table, q)
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, wrapErr(db.OpSearch, err)
	}
	return &sqlRows{rows: rows}, nil
}

// wrapErr carries the SQLSTATE code when the server reported one.
func wrapErr(op string, err error) error {
	dbErr := &db.Error{Op: op, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		dbErr.Code = pgErr.Code
	}
	return dbErr
}
