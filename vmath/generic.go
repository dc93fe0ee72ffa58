package vmath

import "golang.org/x/exp/constraints"

// ClampOrdered clamps v to [lo,hi] for any ordered type. Used to
// sanitize configuration values before they size a fixed-capacity
// allocation, where the scalar helpers above (float32-only) don't fit.
func ClampOrdered[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
