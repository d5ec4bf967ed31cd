// Package query builds validated, store-independent vector search queries.
//
// A SearchQuery never carries query text. Drivers render it into their native form and bind
// the vector and the partition value as parameters.
package query

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
)

// MaxPartitionValueLength bounds the partition filter value.
const MaxPartitionValueLength = 1024

// Partition is an equality predicate on a partition field.
type Partition struct {
	field string
	value string
}

// Field returns the partition field name.
func (p Partition) Field() string { return p.field }

// Value returns the value the field must equal.
func (p Partition) Value() string { return p.value }

// SearchQuery is an immutable, validated vector search.
type SearchQuery struct {
	strategy  strategy.Strategy
	vector    []float32
	limit     int
	partition *Partition
}

type options struct {
	partitionField string
}

// Option customizes Build.
type Option func(*options)

// WithPartitionField overrides the field the filtered strategy compares against.
func WithPartitionField(name string) Option {
	return func(o *options) {
		if name != "" {
			o.partitionField = name
		}
	}
}

// Build validates the parameters and returns a SearchQuery for the given strategy.
// partitionValue must be non-empty for the filtered strategy and empty otherwise.
func Build(
	s strategy.Strategy, vector []float32, limit int, partitionValue string, opts ...Option,
) (SearchQuery, error) {
	o := options{partitionField: domain.DefaultPartitionField}
	for _, opt := range opts {
		opt(&o)
	}

	if !s.IsValid() {
		return SearchQuery{}, fmt.Errorf("unknown strategy %q: %w", s, domain.ErrInvalidQuery)
	}
	if limit <= 0 {
		return SearchQuery{}, fmt.Errorf("result limit must be positive, got %d: %w", limit, domain.ErrInvalidQuery)
	}
	if err := validateVector(vector); err != nil {
		return SearchQuery{}, err
	}

	q := SearchQuery{
		strategy: s,
		vector:   append([]float32(nil), vector...),
		limit:    limit,
	}

	switch {
	case s.RequiresPartition():
		if err := validatePartition(o.partitionField, partitionValue); err != nil {
			return SearchQuery{}, err
		}
		q.partition = &Partition{field: o.partitionField, value: partitionValue}
	case partitionValue != "":
		return SearchQuery{}, fmt.Errorf(
			"partition value is only allowed with the %s strategy: %w", strategy.Filtered, domain.ErrInvalidQuery,
		)
	}

	return q, nil
}

// Strategy returns the search strategy.
func (q SearchQuery) Strategy() strategy.Strategy { return q.strategy }

// Vector returns a copy of the query vector.
func (q SearchQuery) Vector() []float32 { return append([]float32(nil), q.vector...) }

// Dimensions returns the query vector length.
func (q SearchQuery) Dimensions() int { return len(q.vector) }

// Limit returns the top-K bound.
func (q SearchQuery) Limit() int { return q.limit }

// Ordered reports whether the store must sort by ascending distance.
func (q SearchQuery) Ordered() bool { return q.strategy.IsOrdered() }

// Partition returns the partition predicate, or nil when the query spans all partitions.
func (q SearchQuery) Partition() *Partition {
	if q.partition == nil {
		return nil
	}
	p := *q.partition
	return &p
}

// CrossPartition reports whether the store must scan every partition.
func (q SearchQuery) CrossPartition() bool { return q.partition == nil }

// IsZero reports whether q was not produced by Build.
func (q SearchQuery) IsZero() bool { return q.limit == 0 }

func validateVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("query vector is empty: %w", domain.ErrInvalidQuery)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("query vector component %d is not finite: %w", i, domain.ErrInvalidQuery)
		}
	}
	return nil
}

func validatePartition(field, value string) error {
	if !IsValidIdentifier(field) {
		return fmt.Errorf("invalid partition field %q: %w", field, domain.ErrInvalidQuery)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("partition value is required for the %s strategy: %w", strategy.Filtered, domain.ErrInvalidQuery)
	}
	if len(value) > MaxPartitionValueLength {
		return fmt.Errorf("partition value too long (max %d bytes): %w", MaxPartitionValueLength, domain.ErrInvalidQuery)
	}
	if !utf8.ValidString(value) || strings.ContainsRune(value, 0) {
		return fmt.Errorf("partition value is not valid text: %w", domain.ErrInvalidQuery)
	}
	return nil
}

// IsValidIdentifier returns true if s matches [A-Za-z_][A-Za-z0-9_]*.
// Field names cannot be bound as parameters, so every driver relies on this check.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
