package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// Matcher resolves region polygons to grid cells.
type Matcher struct {
	index *Index
	areas *domain.AreaTable

	// Workers bounds concurrent polygon tests. Values below 2 run serially.
	// The result does not depend on it.
	Workers int
}

// NewMatcher creates a matcher over idx.
func NewMatcher(idx *Index) *Matcher {
	return &Matcher{
		index: idx,
		areas: domain.NewAreaTable(idx.Grid()),
	}
}

// Index returns the underlying grid index.
func (m *Matcher) Index() *Index {
	return m.index
}

// Match returns the deduplicated cells inside r, in polygon order then
// lon_index/lat_index order. An empty match is a spatial match error.
func (m *Matcher) Match(r *Region) ([]domain.Cell, error) {
	perPolygon := make([][]CellRef, len(r.prepared))

	if m.Workers < 2 || len(r.prepared) < 2 {
		for i := range r.prepared {
			perPolygon[i] = m.matchPolygon(r.prepared[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.Workers)
		for i := range r.prepared {
			g.Go(func() error {
				perPolygon[i] = m.matchPolygon(r.prepared[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("failed to match region %s: %w", r.Name, err)
		}
	}

	seen := make(map[[2]int]bool)
	var cells []domain.Cell
	for _, refs := range perPolygon {
		for _, ref := range refs {
			key := [2]int{ref.LonIndex, ref.LatIndex}
			if seen[key] {
				continue
			}
			seen[key] = true
			cells = append(cells, domain.Cell{
				LonIndex: ref.LonIndex,
				LatIndex: ref.LatIndex,
				Lon:      ref.Lon,
				Lat:      ref.Lat,
				AreaM2:   m.areas.At(ref.LatIndex),
			})
		}
	}

	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: no grid cell inside region %s", domain.ErrSpatialMatch, r.Name)
	}
	return cells, nil
}

func (m *Matcher) matchPolygon(pp preparedPolygon) []CellRef {
	candidates := m.index.Candidates(pp.bound)
	matched := candidates[:0]
	for _, c := range candidates {
		if pp.contains(orb.Point{c.Lon, c.Lat}) {
			matched = append(matched, c)
		}
	}
	return matched
}
