package cip

import "math"

// DefaultEpsilon is the absolute+relative tolerance used by EQ/LE/GE and
// IsIntegral when a *Config is not threaded through (e.g. package-level
// helpers used by tests). Components that hold a *Config use its
// Epsilon field instead.
const DefaultEpsilon = 1e-9

// EQ reports whether a and b are equal within tol, using a combined
// absolute+relative test so that comparisons involving large
// coefficients don't spuriously fail.
func EQ(a, b, tol float64) bool {
	if IsInfinity(a) || IsInfinity(b) {
		return sameInfinity(a, b)
	}
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= tol*scale
}

// LE reports whether a <= b within tol (i.e. a is not provably greater).
func LE(a, b, tol float64) bool {
	return a <= b+tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// GE reports whether a >= b within tol.
func GE(a, b, tol float64) bool {
	return LE(b, a, tol)
}

func sameInfinity(a, b float64) bool {
	return (a >= Infinity && b >= Infinity) || (a <= -Infinity && b <= -Infinity)
}

// IsInfinity reports whether v is at or beyond the Host's Infinity
// convention, in either sign.
func IsInfinity(v float64) bool {
	return v >= Infinity || v <= -Infinity
}

// IsIntegral reports whether v is within tol of an integer.
func IsIntegral(v, tol float64) bool {
	if IsInfinity(v) {
		return false
	}
	return math.Abs(v-math.Round(v)) <= tol
}

// Ceil returns the smallest integer >= v, snapping v to its nearest
// integer first if it is already within tol (so that e.g. ceil(3.0000000001)
// returns 3, not 4).
func Ceil(v, tol float64) float64 {
	r := math.Round(v)
	if math.Abs(v-r) <= tol {
		return r
	}
	return math.Ceil(v)
}

// Floor returns the largest integer <= v, with the same snapping behaviour
// as Ceil.
func Floor(v, tol float64) float64 {
	r := math.Round(v)
	if math.Abs(v-r) <= tol {
		return r
	}
	return math.Floor(v)
}

// QuadSum accumulates values with Kahan compensated summation, reducing
// the rounding error that would otherwise accumulate across long rows and
// could flip an EQ decision made against the naive sum.
func QuadSum(values ...float64) float64 {
	var sum, c float64
	for _, v := range values {
		y := v - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// QuadProduct splits a*b into a high/low pair (hi+lo == a*b to full
// float64 precision) via Dekker's algorithm, used by the Sparsifier when
// computing cancellation envelopes where a plain a*b could lose the bits
// an EQ tolerance check depends on.
func QuadProduct(a, b float64) (hi, lo float64) {
	const splitter = 134217729.0 // 2^27 + 1
	ca := splitter * a
	ha := ca - (ca - a)
	ta := a - ha
	cb := splitter * b
	hb := cb - (cb - b)
	tb := b - hb

	hi = a * b
	lo = ((ha*hb - hi) + ha*tb + ta*hb) + ta*tb
	return hi, lo
}
