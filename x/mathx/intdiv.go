package mathx

import "golang.org/x/exp/constraints"

// RoundDiv returns floor((a + b/2)/b), classic rounding for positives.
// b == 0 yields 0.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// MulDiv computes a*b/c in 64-bit to keep oscillator maths from overflowing
// uint32 intermediates.
func MulDiv(a, b, c uint32) uint32 {
	if c == 0 {
		return 0
	}
	return uint32(RoundDiv(uint64(a)*uint64(b), uint64(c)))
}
