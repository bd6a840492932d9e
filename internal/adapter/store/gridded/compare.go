package gridded

import (
	"fmt"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// Comparison summarizes the differences of one variable in two datasets.
type Comparison struct {
	Variable string
	Steps    int
	Cells    int
	domain.Difference
}

// Compare measures the largest differences of variable between two datasets
// on the same grid and time axis.
func Compare(a, b *domain.Dataset, variable string) (Comparison, error) {
	if !a.Grid.Equal(b.Grid) {
		return Comparison{}, fmt.Errorf("grids differ: %dx%d <> %dx%d",
			len(a.Grid.Lats), len(a.Grid.Lons), len(b.Grid.Lats), len(b.Grid.Lons))
	}
	if len(a.Times) != len(b.Times) {
		return Comparison{}, fmt.Errorf("the number of time steps are different: %d <> %d", len(a.Times), len(b.Times))
	}
	for i := range a.Times {
		if !a.Times[i].Equal(b.Times[i]) {
			return Comparison{}, fmt.Errorf("time step %d differs: %s <> %s", i, a.Times[i], b.Times[i])
		}
	}
	fa, ok := a.Field(variable)
	if !ok {
		return Comparison{}, fmt.Errorf("%s is not a variable of %s", variable, a.Name)
	}
	fb, ok := b.Field(variable)
	if !ok {
		return Comparison{}, fmt.Errorf("%s is not a variable of %s", variable, b.Name)
	}

	c := Comparison{Variable: variable, Steps: len(a.Times), Cells: a.Grid.NumCells()}
	for t, slab := range fa.Values {
		for j, row := range slab {
			for i, x := range row {
				c.Add(x, fb.Values[t][j][i])
			}
		}
	}
	return c, nil
}
