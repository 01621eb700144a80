package common

import "math"

// RoundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -1.5 rounds to -1 and 1.5 to 2.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
