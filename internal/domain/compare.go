package domain

import "math"

// Difference tracks the largest absolute and relative differences seen
// over value pairs. The relative difference of a pair is 2|a-b|/|a+b|.
// Two missing values are equal; one missing value is an infinite difference.
type Difference struct {
	MaxAbs float64
	MaxRel float64
}

// Add folds the pair (a, b) into the maxima.
func (d *Difference) Add(a, b float64) {
	var adif, rdif float64
	switch {
	case IsMissing(a) && IsMissing(b):
	case IsMissing(a) || IsMissing(b):
		adif, rdif = math.Inf(1), math.Inf(1)
	default:
		adif = math.Abs(a - b)
		if adif != 0 {
			rdif = 2 * adif / math.Abs(a+b)
		}
	}
	d.MaxAbs = math.Max(d.MaxAbs, adif)
	d.MaxRel = math.Max(d.MaxRel, rdif)
}

// Within reports whether the maxima are inside the tolerances.
func (d Difference) Within(rtol, atol float64) bool {
	return d.MaxRel <= rtol && d.MaxAbs <= atol
}
