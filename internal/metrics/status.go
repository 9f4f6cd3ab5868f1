package metrics

import "sort"

// StatusBucket is the number of responses received with one status code.
type StatusBucket struct {
	Code  string
	Count int64
}

// FlattenStatusBuckets converts a status code map into rows sorted by
// descending count, then by code for stability.
func FlattenStatusBuckets(codes map[string]int64) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
