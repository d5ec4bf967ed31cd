package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingService signals a failed call to the embedding provider
	// (auth, quota, transport, malformed response).
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrRateLimited signals a provider-side rate limit or quota rejection.
	// Always wrapped together with ErrEmbeddingService.
	ErrRateLimited = errors.New("rate limited")
	// ErrQueryExecution signals that the document store rejected or failed a query.
	ErrQueryExecution = errors.New("query execution error")
	// ErrDocumentParse signals an input document that is not valid structured data.
	ErrDocumentParse = errors.New("document parse error")
	// ErrIO signals a filesystem read or write failure.
	ErrIO = errors.New("io error")
	// ErrInvalidQuery signals search parameters rejected before reaching the store.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector whose length differs from the configured dimensions.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// QueryExecutionError carries the store's own error code and message.
type QueryExecutionError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

// NewQueryExecutionError wraps a store failure for the given operation.
func NewQueryExecutionError(op, code, message string, err error) *QueryExecutionError {
	return &QueryExecutionError{Op: op, Code: code, Message: message, Err: err}
}

func (e *QueryExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s [%s]: %s", ErrQueryExecution.Error(), e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrQueryExecution.Error(), e.Op, msg)
}

func (e *QueryExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrQueryExecution}
	}
	return []error{ErrQueryExecution, e.Err}
}

// Error kind names reported in batch summaries and HTTP responses.
const (
	KindEmbeddingService = "EmbeddingServiceError"
	KindQueryExecution   = "QueryExecutionError"
	KindDocumentParse    = "DocumentParseError"
	KindIO               = "IOError"
	KindInvalidQuery     = "InvalidQueryError"
	KindUnknown          = "Error"
)

// ErrorKind maps an error onto its taxonomy name.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDocumentParse):
		return KindDocumentParse
	case errors.Is(err, ErrEmbeddingService):
		return KindEmbeddingService
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrQueryExecution):
		return KindQueryExecution
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalidQuery
	default:
		return KindUnknown
	}
}
