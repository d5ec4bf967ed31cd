package batch

import (
	"sort"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch.
type Result struct {
	name   string
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(name string) Result { return Result{name: name, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(name string, err error) Result { return Result{name: name, status: StatusError, err: err} }

// Name returns the item identifier (file name for directory datasets).
func (r Result) Name() string { return r.name }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary aggregates a batch run. Errors is keyed by item name.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{Errors: make(map[string]error)}
}

// Add records one item outcome.
func (s *Summary) Add(r Result) {
	if s.Errors == nil {
		s.Errors = make(map[string]error)
	}
	s.Processed++
	if r.status == StatusOK {
		s.Succeeded++
		return
	}
	s.Failed++
	s.Errors[r.name] = r.err
}

// ErrorKinds maps each failed item to its error taxonomy name.
func (s Summary) ErrorKinds() map[string]string {
	kinds := make(map[string]string, len(s.Errors))
	for name, err := range s.Errors {
		kinds[name] = domain.ErrorKind(err)
	}
	return kinds
}

// FailedNames returns failed item names in sorted order.
func (s Summary) FailedNames() []string {
	names := make([]string, 0, len(s.Errors))
	for name := range s.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
