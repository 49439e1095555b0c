package backend

import "github.com/mwantia/secstore/data"

// DescendantRange returns the half-open byte range [lo, hi) that contains
// every key nested under key. The delimiter is '/', so the upper bound simply
// replaces the trailing delimiter with the next byte ('0').
// For the root, hi is empty and the range is unbounded above.
func DescendantRange(key string) (lo, hi string) {
	lo = data.ChildPrefix(key)
	if data.IsRoot(key) {
		return lo, ""
	}

	return lo, lo[:len(lo)-1] + "0"
}
