// Package paging applies limit/offset windows to in-memory result sets.
package paging

import "slices"

// Limit applies def to non-positive limits and caps the result at hi.
func Limit(limit, def, hi int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, hi)
}

// Slice returns a copy of items[offset:offset+limit], clipped to the input.
// Negative offsets count as zero.
func Slice[T any](items []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end])
}
