package domain

import "math"

// EarthRadiusM is the mean Earth radius used for cell areas.
const EarthRadiusM = 6371000.0

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// CellArea returns the surface area in square meters of a grid cell centred
// at lat with the given spacing in degrees:
//
//	A = R² · rad(latStep) · rad(lonStep) · cos(rad(lat))
func CellArea(lat, latStep, lonStep float64) float64 {
	if math.Abs(lat) >= 90 {
		return 0
	}
	return EarthRadiusM * EarthRadiusM *
		Deg2Rad(math.Abs(latStep)) * Deg2Rad(math.Abs(lonStep)) *
		math.Cos(Deg2Rad(lat))
}

// AreaTable caches cell areas per latitude row of a grid.
type AreaTable struct {
	byLat []float64
}

// NewAreaTable computes the area of every latitude row of g once.
func NewAreaTable(g Grid) *AreaTable {
	latStep, lonStep := g.Spacing()
	t := &AreaTable{byLat: make([]float64, len(g.Lats))}
	for j, lat := range g.Lats {
		t.byLat[j] = CellArea(lat, latStep, lonStep)
	}
	return t
}

// At returns the cached area for latitude row j.
func (t *AreaTable) At(j int) float64 {
	return t.byLat[j]
}
