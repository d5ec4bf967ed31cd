package db

import "errors"

// ErrKeyNotFound is returned by KV reads for a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op names used for error context.
const (
	OpPing   = "PING"
	OpSearch = "SEARCH"
	OpUpsert = "UPSERT"
	OpGet    = "GET"
	OpSet    = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
// Code carries the store's own error code when the driver can extract one.
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Op + " [" + e.Code + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
