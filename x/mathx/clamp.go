package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NextPow2 returns the smallest power of two >= v (minimum 2).
func NextPow2[T constraints.Unsigned](v T) T {
	p := T(2)
	for p < v {
		p <<= 1
	}
	return p
}
