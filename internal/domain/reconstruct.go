package domain

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

const (
	// maxSplineGap is the longest run of missing months the spline may fill.
	maxSplineGap = 3

	// minSplinePoints is the number of known points a not-a-knot cubic needs.
	minSplinePoints = 4
)

// Reconstruction holds every intermediate of the amplitude-modulation
// reconstruction of a satellite series, indexed by month.
type Reconstruction struct {
	Months        []Month
	Monthly       []float64 // Monthly resample after single-month forward fill.
	Trend         []float64
	IAV           []float64
	Climatology   [12]float64 // Indexed by calendar month - 1. NaN if undefined.
	NoClim        []float64
	NoClimFilled  []float64
	Reconstructed []float64
	Slope         float64 // Trend slope per month.
	Intercept     float64
}

// Series returns the reconstructed values as a monthly series.
func (r *Reconstruction) Series(name, unit string) Series {
	return MonthlySeries(name, unit, r.Months, append([]float64(nil), r.Reconstructed...))
}

// Reconstruct detrends, deseasonalizes, gap-fills and reseasonalizes an
// irregularly sampled series. The fitted trend is removed for climatology
// estimation only and is not added back to the output.
func Reconstruct(s Series) (*Reconstruction, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Valid() < 2 {
		return nil, fmt.Errorf("%w: series %s has %d valid samples, need at least 2",
			ErrTemporalReconstruction, s.Name, s.Valid())
	}

	months, monthly := resampleMonthly(s)
	monthly = forwardFillSingle(monthly)
	if valid := countValid(monthly); valid < 2 {
		return nil, fmt.Errorf("%w: series %s has %d valid months, need at least 2",
			ErrTemporalReconstruction, s.Name, valid)
	}

	r := &Reconstruction{Months: months, Monthly: monthly}

	xs := make([]float64, 0, len(monthly))
	ys := make([]float64, 0, len(monthly))
	for i, v := range monthly {
		if IsMissing(v) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	// stat.LinearRegression returns y = alpha + beta*x.
	r.Intercept, r.Slope = stat.LinearRegression(xs, ys, nil, false)

	n := len(monthly)
	r.Trend = make([]float64, n)
	r.IAV = make([]float64, n)
	for i, v := range monthly {
		r.Trend[i] = r.Intercept + r.Slope*float64(i)
		r.IAV[i] = v - r.Trend[i]
	}

	var sums [12]float64
	var counts [12]int
	for i, v := range r.IAV {
		if IsMissing(v) {
			continue
		}
		k := int(months[i].Month) - 1
		sums[k] += v
		counts[k]++
	}
	for k := range r.Climatology {
		if counts[k] == 0 {
			r.Climatology[k] = Missing
			continue
		}
		r.Climatology[k] = sums[k] / float64(counts[k])
	}

	r.NoClim = make([]float64, n)
	for i, v := range monthly {
		r.NoClim[i] = v - r.Climatology[int(months[i].Month)-1]
	}

	r.NoClimFilled = fillGaps(forwardFillSingle(r.NoClim), maxSplineGap)

	r.Reconstructed = make([]float64, n)
	for i, v := range r.NoClimFilled {
		r.Reconstructed[i] = v + r.Climatology[int(months[i].Month)-1]
	}
	return r, nil
}

// resampleMonthly bins samples onto a contiguous monthly index spanning the
// series. Several samples in one month are averaged; empty months are NaN.
func resampleMonthly(s Series) ([]Month, []float64) {
	first := MonthOf(s.Times[0])
	last := MonthOf(s.Times[len(s.Times)-1])
	months := MonthRange(first, last)

	sums := make([]float64, len(months))
	counts := make([]int, len(months))
	for i, t := range s.Times {
		v := s.Values[i]
		if IsMissing(v) {
			continue
		}
		k := MonthOf(t).Ordinal() - first.Ordinal()
		sums[k] += v
		counts[k]++
	}
	values := make([]float64, len(months))
	for k := range values {
		if counts[k] == 0 {
			values[k] = Missing
			continue
		}
		values[k] = sums[k] / float64(counts[k])
	}
	return months, values
}

func countValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// forwardFillSingle fills isolated one-month gaps with the previous value.
// Longer runs stay missing.
func forwardFillSingle(values []float64) []float64 {
	out := append([]float64(nil), values...)
	for i := 1; i < len(values); i++ {
		if !IsMissing(values[i]) || IsMissing(values[i-1]) {
			continue
		}
		if i+1 < len(values) && IsMissing(values[i+1]) {
			continue
		}
		out[i] = values[i-1]
	}
	return out
}

// gapRun is a maximal run of missing values [start, end).
type gapRun struct{ start, end int }

func missingRuns(values []float64) []gapRun {
	var runs []gapRun
	for i := 0; i < len(values); {
		if !IsMissing(values[i]) {
			i++
			continue
		}
		j := i
		for j < len(values) && IsMissing(values[j]) {
			j++
		}
		runs = append(runs, gapRun{start: i, end: j})
		i = j
	}
	return runs
}

// fillGaps cubic-spline interpolates interior runs of at most maxGap missing
// values. Edge runs, longer runs and series with too few known points are
// left as they are.
func fillGaps(values []float64, maxGap int) []float64 {
	out := append([]float64(nil), values...)

	var xs, ys []float64
	for i, v := range values {
		if !IsMissing(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	if len(xs) < minSplinePoints {
		return out
	}
	var spline interp.NotAKnotCubic
	if err := spline.Fit(xs, ys); err != nil {
		return out
	}

	for _, run := range missingRuns(values) {
		if run.start == 0 || run.end == len(values) {
			continue
		}
		if run.end-run.start > maxGap {
			continue
		}
		for i := run.start; i < run.end; i++ {
			out[i] = spline.Predict(float64(i))
		}
	}
	return out
}

// UndefinedClimatology lists calendar months (1..12) with no samples.
func (r *Reconstruction) UndefinedClimatology() []int {
	var undefined []int
	for k, v := range r.Climatology {
		if IsMissing(v) {
			undefined = append(undefined, k+1)
		}
	}
	return undefined
}
