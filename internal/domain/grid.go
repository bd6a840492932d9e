package domain

import (
	"fmt"
	"math"
)

// spacingTolerance is the relative slack allowed between neighbouring
// coordinate steps. Single precision coordinates drift by a few ulps.
const spacingTolerance = 1e-3

// Grid is a regular lon/lat grid described by its 1-D coordinate axes.
type Grid struct {
	Lons []float64 // Longitudes in degrees, ascending, either convention.
	Lats []float64 // Latitudes in degrees, ascending.
}

// Cell is one grid point selected for aggregation.
type Cell struct {
	LonIndex int     `json:"lon_index"`
	LatIndex int     `json:"lat_index"`
	Lon      float64 `json:"lon"` // Normalized to [-180, 180].
	Lat      float64 `json:"lat"`
	AreaM2   float64 `json:"area_m2"`
}

// NewGrid validates the axes and returns a Grid.
func NewGrid(lons, lats []float64) (Grid, error) {
	g := Grid{Lons: lons, Lats: lats}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate checks that both axes are strictly increasing and uniformly spaced.
func (g Grid) Validate() error {
	if len(g.Lons) < 2 {
		return fmt.Errorf("%w: grid must have at least 2 longitudes", ErrInputValidation)
	}
	if len(g.Lats) < 2 {
		return fmt.Errorf("%w: grid must have at least 2 latitudes", ErrInputValidation)
	}
	if err := checkAxis("longitude", g.Lons); err != nil {
		return err
	}
	if err := checkAxis("latitude", g.Lats); err != nil {
		return err
	}
	for _, lat := range g.Lats {
		if lat < -90 || lat > 90 {
			return fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrInputValidation, lat)
		}
	}
	return nil
}

func checkAxis(name string, coords []float64) error {
	step := coords[1] - coords[0]
	for i := 1; i < len(coords); i++ {
		d := coords[i] - coords[i-1]
		if d <= 0 {
			return fmt.Errorf("%w: %s coordinates must be strictly increasing", ErrInputValidation, name)
		}
		if math.Abs(d-step) > spacingTolerance*step {
			return fmt.Errorf("%w: %s spacing is not uniform at index %d (%.6f vs %.6f)",
				ErrInputValidation, name, i, d, step)
		}
	}
	return nil
}

// Spacing returns the latitude and longitude steps in degrees.
// It assumes a validated grid.
func (g Grid) Spacing() (latStep, lonStep float64) {
	latStep = (g.Lats[len(g.Lats)-1] - g.Lats[0]) / float64(len(g.Lats)-1)
	lonStep = (g.Lons[len(g.Lons)-1] - g.Lons[0]) / float64(len(g.Lons)-1)
	return latStep, lonStep
}

// NumCells returns the number of grid points.
func (g Grid) NumCells() int {
	return len(g.Lons) * len(g.Lats)
}

// Equal reports whether two grids share identical axes.
func (g Grid) Equal(o Grid) bool {
	if len(g.Lons) != len(o.Lons) || len(g.Lats) != len(o.Lats) {
		return false
	}
	for i := range g.Lons {
		if g.Lons[i] != o.Lons[i] {
			return false
		}
	}
	for i := range g.Lats {
		if g.Lats[i] != o.Lats[i] {
			return false
		}
	}
	return true
}

// NormalizeLon180 maps longitudes above 180 into the [-180, 180] range.
func NormalizeLon180(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
