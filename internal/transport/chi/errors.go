package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// errorCode is the machine-readable code in every error response.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeUnauthorized     errorCode = "unauthorized"
	codeValidationFailed errorCode = "validation_failed"
	codeRateLimited      errorCode = "rate_limited"
	codeEmbeddingFailed  errorCode = "embedding_provider_error"
	codeQueryFailed      errorCode = "query_execution_error"
	codeInternal         errorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      errorCode `json:"code"`
	Message   string    `json:"message"`
	StoreCode string    `json:"store_code,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, codeEmbeddingFailed),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
	sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, codeEmbeddingFailed),
	queryExecutionHandler,
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text, never the wrapped internals.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// queryExecutionHandler reports store failures together with the store's own code.
func queryExecutionHandler(w http.ResponseWriter, err error) bool {
	var qe *domain.QueryExecutionError
	if !errors.As(err, &qe) {
		return false
	}
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Code:      codeQueryFailed,
		Message:   domain.ErrQueryExecution.Error(),
		StoreCode: qe.Code,
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
