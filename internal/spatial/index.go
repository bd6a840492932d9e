// Package spatial resolves which cells of a regular grid fall inside a region.
package spatial

import (
	"sort"

	"github.com/paulmach/orb"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// CellRef locates a grid point by index with its normalized coordinates.
type CellRef struct {
	LonIndex int
	LatIndex int
	Lon      float64
	Lat      float64
}

// Index is a bucket index over grid points keyed by (lon_index, lat_index).
// The grid is regular, so a bounding box maps to a contiguous range of
// latitude rows and a range of longitude columns after normalization.
type Index struct {
	grid domain.Grid

	// lonOrder holds column indices sorted by normalized longitude.
	lonOrder  []int
	sortedLon []float64
}

// NewIndex builds the index in O(n_lon log n_lon + n_lat).
func NewIndex(g domain.Grid) (*Index, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	idx := &Index{
		grid:      g,
		lonOrder:  make([]int, len(g.Lons)),
		sortedLon: make([]float64, len(g.Lons)),
	}
	for i := range g.Lons {
		idx.lonOrder[i] = i
	}
	sort.SliceStable(idx.lonOrder, func(a, b int) bool {
		return domain.NormalizeLon180(g.Lons[idx.lonOrder[a]]) < domain.NormalizeLon180(g.Lons[idx.lonOrder[b]])
	})
	for k, i := range idx.lonOrder {
		idx.sortedLon[k] = domain.NormalizeLon180(g.Lons[i])
	}
	return idx, nil
}

// Grid returns the indexed grid.
func (x *Index) Grid() domain.Grid {
	return x.grid
}

// Bound returns the normalized extent of the grid points.
func (x *Index) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{x.sortedLon[0], x.grid.Lats[0]},
		Max: orb.Point{x.sortedLon[len(x.sortedLon)-1], x.grid.Lats[len(x.grid.Lats)-1]},
	}
}

// Candidates returns every grid point whose normalized centre lies inside b
// (edges included), ordered by lon_index then lat_index.
func (x *Index) Candidates(b orb.Bound) []CellRef {
	lats := x.grid.Lats
	j0 := sort.SearchFloat64s(lats, b.Min.Lat())
	j1 := sort.Search(len(lats), func(j int) bool { return lats[j] > b.Max.Lat() })
	if j0 >= j1 {
		return nil
	}
	k0 := sort.SearchFloat64s(x.sortedLon, b.Min.Lon())
	k1 := sort.Search(len(x.sortedLon), func(k int) bool { return x.sortedLon[k] > b.Max.Lon() })
	if k0 >= k1 {
		return nil
	}

	cols := append([]int(nil), x.lonOrder[k0:k1]...)
	sort.Ints(cols)

	refs := make([]CellRef, 0, len(cols)*(j1-j0))
	for _, i := range cols {
		lon := domain.NormalizeLon180(x.grid.Lons[i])
		for j := j0; j < j1; j++ {
			refs = append(refs, CellRef{LonIndex: i, LatIndex: j, Lon: lon, Lat: lats[j]})
		}
	}
	return refs
}
