// Package interp resamples 2-D lat/lon grids bilinearly.
package interp

import (
	"fmt"
	"math"
	"sort"
)

// GridCell represents a cell in a regular grid with four corner values.
type GridCell struct {
	X0, X1 float64 // Longitude bounds.
	Y0, Y1 float64 // Latitude bounds.

	// V00 is the value at (X0, Y0), V10 at (X1, Y0), V01 at (X0, Y1) and
	// V11 at (X1, Y1).
	V00, V10, V01, V11 float64
}

// Bilinear interpolates within the cell:
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// A NaN corner makes the result NaN.
func Bilinear(cell GridCell, x, y float64) (float64, error) {
	if cell.X1 <= cell.X0 || cell.Y1 <= cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell [%g, %g]x[%g, %g]", cell.X0, cell.X1, cell.Y0, cell.Y1)
	}
	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon || y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("point (%.6f, %.6f) is outside grid cell", x, y)
	}

	t := math.Max(0, math.Min(1, (x-cell.X0)/(cell.X1-cell.X0)))
	u := math.Max(0, math.Min(1, (y-cell.Y0)/(cell.Y1-cell.Y0)))

	return (1-t)*(1-u)*cell.V00 +
		t*(1-u)*cell.V10 +
		(1-t)*u*cell.V01 +
		t*u*cell.V11, nil
}

// Grid2D is a regular grid of values.
type Grid2D struct {
	X      []float64   // Longitudes, strictly increasing.
	Y      []float64   // Latitudes, strictly increasing.
	Values [][]float64 // Values[j][i] corresponds to (X[i], Y[j]).
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 || len(g.Y) < 2 {
		return fmt.Errorf("grid must have at least 2x2 points, has %dx%d", len(g.X), len(g.Y))
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}
	for j, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", j, len(row), len(g.X))
		}
	}
	for i := 1; i < len(g.X); i++ {
		if g.X[i] <= g.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	for j := 1; j < len(g.Y); j++ {
		if g.Y[j] <= g.Y[j-1] {
			return fmt.Errorf("Y coordinates must be strictly increasing")
		}
	}
	return nil
}

// cellIndex returns k with axis[k] <= v <= axis[k+1], or -1.
func cellIndex(axis []float64, v float64) int {
	if v < axis[0] || v > axis[len(axis)-1] {
		return -1
	}
	k := sort.SearchFloat64s(axis, v)
	if k == 0 {
		return 0
	}
	return k - 1
}

// At interpolates the grid at (x, y). Points outside the grid are an error.
func (g *Grid2D) At(x, y float64) (float64, error) {
	i := cellIndex(g.X, x)
	if i < 0 {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid range [%.6f, %.6f]", x, g.X[0], g.X[len(g.X)-1])
	}
	j := cellIndex(g.Y, y)
	if j < 0 {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid range [%.6f, %.6f]", y, g.Y[0], g.Y[len(g.Y)-1])
	}
	return Bilinear(GridCell{
		X0:  g.X[i],
		X1:  g.X[i+1],
		Y0:  g.Y[j],
		Y1:  g.Y[j+1],
		V00: g.Values[j][i],
		V10: g.Values[j][i+1],
		V01: g.Values[j+1][i],
		V11: g.Values[j+1][i+1],
	}, x, y)
}

// Regrid resamples g onto the target axes, laid out [lat][lon]. Target
// points outside g are NaN.
func Regrid(g *Grid2D, lons, lats []float64) ([][]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	out := make([][]float64, len(lats))
	for j, lat := range lats {
		out[j] = make([]float64, len(lons))
		for i, lon := range lons {
			v, err := g.At(lon, lat)
			if err != nil {
				v = math.NaN()
			}
			out[j][i] = v
		}
	}
	return out, nil
}
