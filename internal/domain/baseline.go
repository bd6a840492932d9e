package domain

// Baseline is the long-term mean of one matched cell for one variable.
type Baseline struct {
	Mean float64 `json:"mean"`
	// Masked is set when the cell has no valid sample at all. Masked cells
	// drop out of both the numerator and the area total downstream.
	Masked bool `json:"masked"`
}

// Baselines is aligned index for index with the matched cell slice.
type Baselines []Baseline

// ComputeBaselines returns the mean of every cell over all non-missing time
// steps of f.
func ComputeBaselines(f *Field, cells []Cell) Baselines {
	out := make(Baselines, len(cells))
	for i, c := range cells {
		var sum float64
		var n int
		for _, slab := range f.Values {
			v := slab[c.LatIndex][c.LonIndex]
			if IsMissing(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			out[i] = Baseline{Mean: Missing, Masked: true}
			continue
		}
		out[i] = Baseline{Mean: sum / float64(n)}
	}
	return out
}

// Active counts baselines that are not masked.
func (b Baselines) Active() int {
	n := 0
	for _, x := range b {
		if !x.Masked {
			n++
		}
	}
	return n
}
