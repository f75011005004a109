package rules

import "math"

// DefaultRelativeEpsilon is the relative tolerance used when snapping AP/HP to their bounds.
const DefaultRelativeEpsilon = 1e-15

// ApproxEqual reports whether a and b are equal within a relative tolerance.
func ApproxEqual(a, b, epsilon float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	// Below magnitude 1 the tolerance is absolute, otherwise a value
	// drifting toward zero would never snap.
	if scale < 1 {
		scale = 1
	}
	return diff <= epsilon*scale
}

// Snap clamps v onto lo or hi when it is approximately equal to either bound.
// Values clearly outside [lo, hi] are returned unchanged so the caller can reject them.
func Snap(v, lo, hi, epsilon float64) float64 {
	if ApproxEqual(v, lo, epsilon) {
		return lo
	}
	if ApproxEqual(v, hi, epsilon) {
		return hi
	}
	return v
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
