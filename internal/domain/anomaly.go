package domain

import (
	"fmt"
	"strings"
	"time"
)

// MissingPolicy selects how a missing per-cell value enters the area
// weighted sum.
type MissingPolicy int

const (
	// ZeroFillMissing adds nothing to the numerator but keeps the cell's
	// area in the denominator, diluting the mean towards zero.
	ZeroFillMissing MissingPolicy = iota

	// ExcludeMissing drops the cell from both sums for that time step.
	ExcludeMissing
)

func (p MissingPolicy) String() string {
	switch p {
	case ZeroFillMissing:
		return "zero"
	case ExcludeMissing:
		return "exclude"
	default:
		return fmt.Sprintf("MissingPolicy(%d)", int(p))
	}
}

// ParseMissingPolicy accepts "zero" (default when empty) or "exclude".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero", "zero-fill", "zerofill":
		return ZeroFillMissing, nil
	case "exclude", "exclude-missing":
		return ExcludeMissing, nil
	default:
		return 0, fmt.Errorf("%w: unknown missing policy %q", ErrInputValidation, s)
	}
}

// weightedCell is a cell that survived masking with its precomputed weight.
type weightedCell struct {
	lat, lon int
	baseline float64
	area     float64
	weight   float64 // scale * area / unitFactor
}

func activeCells(f *Field, cells []Cell, baselines Baselines) ([]weightedCell, float64, error) {
	if len(baselines) != len(cells) {
		return nil, 0, fmt.Errorf("%w: %d baselines for %d cells", ErrInputValidation, len(baselines), len(cells))
	}
	factor, err := UnitFactor(f.Unit)
	if err != nil {
		return nil, 0, fmt.Errorf("variable %s: %w", f.Name, err)
	}
	active := make([]weightedCell, 0, len(cells))
	var totalArea float64
	for i, c := range cells {
		if baselines[i].Masked {
			continue
		}
		scale := 1.0
		if f.Scale != nil {
			scale = f.Scale[c.LatIndex][c.LonIndex]
			if IsMissing(scale) {
				continue
			}
		}
		active = append(active, weightedCell{
			lat:      c.LatIndex,
			lon:      c.LonIndex,
			baseline: baselines[i].Mean,
			area:     c.AreaM2,
			weight:   scale * c.AreaM2 / factor,
		})
		totalArea += c.AreaM2
	}
	if len(active) == 0 || totalArea <= 0 {
		return nil, 0, fmt.Errorf("%w: all %d matched cells are masked for %s", ErrSpatialMatch, len(cells), f.Name)
	}
	return active, totalArea, nil
}

// AggregateAnomaly returns the area weighted anomaly of f over cells in
// centimeters, one value per time step:
//
//	K · Σ[(v − b) / unitFactor · scale · area] / Σ area
func AggregateAnomaly(f *Field, times []time.Time, cells []Cell, baselines Baselines, policy MissingPolicy) (Series, error) {
	if len(times) != len(f.Values) {
		return Series{}, fmt.Errorf("%w: %d times for %d steps of %s", ErrInputValidation, len(times), len(f.Values), f.Name)
	}
	active, totalArea, err := activeCells(f, cells, baselines)
	if err != nil {
		return Series{}, err
	}

	values := make([]float64, len(f.Values))
	for t, slab := range f.Values {
		var num float64
		den := totalArea
		present := 0
		for _, c := range active {
			v := slab[c.lat][c.lon]
			if IsMissing(v) {
				if policy == ExcludeMissing {
					den -= c.area
				}
				continue
			}
			num += (v - c.baseline) * c.weight
			present++
		}
		if policy == ExcludeMissing && (present == 0 || den <= 0) {
			values[t] = Missing
			continue
		}
		values[t] = ReportingFactor * num / den
	}

	return Series{
		Name:   f.Name,
		Unit:   "cm",
		Times:  append([]time.Time(nil), times...),
		Values: values,
	}, nil
}

// TotalArea sums the area of cells that contribute to f's aggregation.
func TotalArea(f *Field, cells []Cell, baselines Baselines) (float64, error) {
	_, total, err := activeCells(f, cells, baselines)
	return total, err
}

// AnomalyGrid returns per-cell anomalies in centimeters laid out like
// f.Values. Positions outside the active cells hold NaN.
func AnomalyGrid(f *Field, cells []Cell, baselines Baselines) ([][][]float64, error) {
	factor, err := UnitFactor(f.Unit)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", f.Name, err)
	}
	out := make([][][]float64, len(f.Values))
	for t, slab := range f.Values {
		grid := make([][]float64, len(slab))
		for j := range slab {
			grid[j] = make([]float64, len(slab[j]))
			for i := range grid[j] {
				grid[j][i] = Missing
			}
		}
		out[t] = grid
	}
	for i, c := range cells {
		if baselines[i].Masked {
			continue
		}
		scale := 1.0
		if f.Scale != nil {
			scale = f.Scale[c.LatIndex][c.LonIndex]
			if IsMissing(scale) {
				continue
			}
		}
		for t, slab := range f.Values {
			v := slab[c.LatIndex][c.LonIndex]
			if IsMissing(v) {
				continue
			}
			out[t][c.LatIndex][c.LonIndex] = ReportingFactor * (v - baselines[i].Mean) / factor * scale
		}
	}
	return out, nil
}
