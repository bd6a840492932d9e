package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilinear(t *testing.T) {
	cell := GridCell{
		X0: 0, X1: 10,
		Y0: 0, Y1: 10,
		V00: 1, V10: 2,
		V01: 3, V11: 4,
	}

	tests := []struct {
		name     string
		x, y     float64
		expected float64
	}{
		{"bottom-left", 0, 0, 1},
		{"bottom-right", 10, 0, 2},
		{"top-left", 0, 10, 3},
		{"top-right", 10, 10, 4},
		{"center", 5, 5, 2.5},
		{"bottom edge", 5, 0, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Bilinear(cell, tt.x, tt.y)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 1e-12)
		})
	}

	_, err := Bilinear(cell, 11, 5)
	assert.Error(t, err)
	_, err = Bilinear(GridCell{X0: 1, X1: 1, Y0: 0, Y1: 1}, 1, 0.5)
	assert.Error(t, err)

	cell.V11 = math.NaN()
	v, err := Bilinear(cell, 2, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestGrid2D_At(t *testing.T) {
	// v = 2x + y over a 1-degree grid, reproduced exactly by bilinear weights.
	g := &Grid2D{X: []float64{0, 1, 2, 3}, Y: []float64{10, 11, 12}}
	for _, y := range g.Y {
		row := make([]float64, len(g.X))
		for i, x := range g.X {
			row[i] = 2*x + y
		}
		g.Values = append(g.Values, row)
	}
	require.NoError(t, g.Validate())

	for _, p := range [][2]float64{{0, 10}, {0.25, 10.75}, {1.5, 11.5}, {3, 12}, {2, 11}} {
		v, err := g.At(p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, 2*p[0]+p[1], v, 1e-12, "at %v", p)
	}

	_, err := g.At(-0.1, 11)
	assert.Error(t, err)
	_, err = g.At(1, 12.5)
	assert.Error(t, err)
}

func TestGrid2D_Validate(t *testing.T) {
	tests := map[string]*Grid2D{
		"too small":    {X: []float64{0}, Y: []float64{0, 1}, Values: [][]float64{{1}, {1}}},
		"row count":    {X: []float64{0, 1}, Y: []float64{0, 1}, Values: [][]float64{{1, 1}}},
		"row length":   {X: []float64{0, 1}, Y: []float64{0, 1}, Values: [][]float64{{1, 1}, {1}}},
		"x not sorted": {X: []float64{1, 0}, Y: []float64{0, 1}, Values: [][]float64{{1, 1}, {1, 1}}},
		"y not sorted": {X: []float64{0, 1}, Y: []float64{1, 1}, Values: [][]float64{{1, 1}, {1, 1}}},
	}
	for name, g := range tests {
		assert.Error(t, g.Validate(), name)
	}
}

func TestRegrid(t *testing.T) {
	g := &Grid2D{
		X:      []float64{0, 1, 2},
		Y:      []float64{0, 1},
		Values: [][]float64{{1, 1, 1}, {1, 1, math.NaN()}},
	}

	out, err := Regrid(g, []float64{0.25, 1.75, 2.5}, []float64{0.25, 0.5})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, row := range out {
		require.Len(t, row, 3)
		assert.Equal(t, 1.0, row[0])
		assert.True(t, math.IsNaN(row[1]), "a masked corner masks the target")
		assert.True(t, math.IsNaN(row[2]), "points outside the source are masked")
	}

	flat := &Grid2D{X: []float64{0, 2}, Y: []float64{0, 2}, Values: [][]float64{{1, 1}, {1, 3}}}
	out, err = Regrid(flat, []float64{0, 1, 2}, []float64{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, out[0])
	assert.Equal(t, []float64{1, 1.5, 2}, out[1])
	assert.Equal(t, []float64{1, 2, 3}, out[2])

	_, err = Regrid(&Grid2D{X: []float64{0}, Y: []float64{0}}, []float64{0}, []float64{0})
	assert.Error(t, err)
}
