package strategy

import "fmt"

// Strategy is the search query shape.
type Strategy string

// Search strategy constants.
const (
	// Unordered returns up to K documents with their distance, in store scan order.
	Unordered Strategy = "unordered"
	// Ordered returns the K nearest documents, nearest first.
	Ordered Strategy = "ordered"
	// Filtered restricts Ordered to a single partition.
	Filtered Strategy = "filtered"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Unordered || s == Ordered || s == Filtered
}

// IsOrdered reports whether results are sorted by ascending distance.
func (s Strategy) IsOrdered() bool {
	return s == Ordered || s == Filtered
}

// RequiresPartition reports whether a partition value must be supplied.
func (s Strategy) RequiresPartition() bool {
	return s == Filtered
}

// Parse converts a string into a Strategy. Empty input yields Ordered.
func Parse(s string) (Strategy, error) {
	if s == "" {
		return Ordered, nil
	}
	st := Strategy(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown search strategy %q (want unordered, ordered or filtered)", s)
	}
	return st, nil
}
