package cosmos

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
)

// Bind parameter names.
const (
	paramLimit     = "@limit"
	paramEmbedding = "@embedding"
	paramPartition = "@partition"
)

// buildQuery renders q as Cosmos SQL. The vector, the limit and the partition value are
// bound as parameters; only the validated field names are written into the text.
// keyField is the container's partition key path, stored as a string. Any other filter
// field is compared through ToString, since Cosmos equality never converts types.
func buildQuery(q query.SearchQuery, keyField string) (string, []azcosmos.QueryParameter) {
	distance := "VectorDistance(c." + domain.VectorField + ", " + paramEmbedding + ")"

	var sb strings.Builder
	sb.WriteString("SELECT TOP ")
	sb.WriteString(paramLimit)
	for i, f := range db.ProjectedFields {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString("c.")
		sb.WriteString(f)
	}
	sb.WriteString(", ")
	sb.WriteString(distance)
	sb.WriteString(" AS ")
	sb.WriteString(db.ScoreAlias)
	sb.WriteString(" FROM c")

	params := []azcosmos.QueryParameter{
		{Name: paramLimit, Value: q.Limit()},
		{Name: paramEmbedding, Value: q.Vector()},
	}

	if p := q.Partition(); !q.CrossPartition() {
		if p.Field() == keyField {
			sb.WriteString(" WHERE c.")
			sb.WriteString(p.Field())
		} else {
			sb.WriteString(" WHERE ToString(c.")
			sb.WriteString(p.Field())
			sb.WriteString(")")
		}
		sb.WriteString(" = ")
		sb.WriteString(paramPartition)
		params = append(params, azcosmos.QueryParameter{Name: paramPartition, Value: p.Value()})
	}
	if q.Ordered() {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(distance)
	}
	return sb.String(), params
}

// partitionKey scopes the request to the filtered partition when the filter is on the
// container's partition key path. Everything else runs cross-partition.
func (s *Store) partitionKey(q query.SearchQuery) azcosmos.PartitionKey {
	if p := q.Partition(); !q.CrossPartition() && p.Field() == s.partitionField {
		return azcosmos.NewPartitionKeyString(p.Value())
	}
	return azcosmos.NewPartitionKey()
}
