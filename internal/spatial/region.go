package spatial

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"go.ngs.io/storage-anomaly/internal/domain"
)

const (
	// searchEpsilon pads point lookups so degenerate boxes still intersect.
	searchEpsilon = 1e-9

	// boundaryEpsilon is the distance in degrees below which a point lies on
	// a ring.
	boundaryEpsilon = 1e-9
)

// Region is an ordered set of polygons in geographic coordinates.
type Region struct {
	Name     string
	Polygons []orb.Polygon

	prepared []preparedPolygon
	tree     *rtree.Rtree
}

// polygonBounds is the rtree entry for one polygon of a region: its
// bounding rectangle and its position in the region.
type polygonBounds struct {
	geom.Polygon
	index int
}

func newPolygonBounds(b orb.Bound, index int) *polygonBounds {
	return &polygonBounds{
		Polygon: geom.Polygon{{
			{X: b.Min.Lon(), Y: b.Min.Lat()},
			{X: b.Max.Lon(), Y: b.Min.Lat()},
			{X: b.Max.Lon(), Y: b.Max.Lat()},
			{X: b.Min.Lon(), Y: b.Max.Lat()},
		}},
		index: index,
	}
}

// preparedPolygon caches ring bounds so most containment tests are
// rejected before walking any edges.
type preparedPolygon struct {
	poly       orb.Polygon
	bound      orb.Bound
	holeBounds []orb.Bound
}

func prepare(p orb.Polygon) preparedPolygon {
	pp := preparedPolygon{poly: p, bound: p[0].Bound()}
	for _, h := range p[1:] {
		pp.holeBounds = append(pp.holeBounds, h.Bound())
	}
	return pp
}

// contains reports whether pt lies strictly inside the polygon. Points on
// the outer boundary or on a hole boundary count as outside.
func (pp preparedPolygon) contains(pt orb.Point) bool {
	if !pp.bound.Contains(pt) {
		return false
	}
	if !planar.RingContains(pp.poly[0], pt) || onRing(pp.poly[0], pt) {
		return false
	}
	for i, h := range pp.poly[1:] {
		if pp.holeBounds[i].Contains(pt) && planar.RingContains(h, pt) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 1; i < len(r); i++ {
		if planar.DistanceFromSegment(r[i-1], r[i], pt) <= boundaryEpsilon {
			return true
		}
	}
	return false
}

// NewRegion normalizes and validates polygons and builds the polygon index.
func NewRegion(name string, polys []orb.Polygon) (*Region, error) {
	if len(polys) == 0 {
		return nil, fmt.Errorf("%w: region %s has no polygons", domain.ErrInputValidation, name)
	}
	r := &Region{Name: name, tree: rtree.NewTree(25, 50)}
	for i, p := range polys {
		np, err := normalizePolygon(p)
		if err != nil {
			return nil, fmt.Errorf("region %s polygon %d: %w", name, i, err)
		}
		r.Polygons = append(r.Polygons, np)
		pp := prepare(np)
		r.prepared = append(r.prepared, pp)
		r.tree.Insert(newPolygonBounds(pp.bound, i))
	}
	return r, nil
}

func normalizePolygon(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", domain.ErrInputValidation)
	}
	out := make(orb.Polygon, len(p))
	for k, ring := range p {
		r := make(orb.Ring, 0, len(ring)+1)
		for _, pt := range ring {
			r = append(r, orb.Point{domain.NormalizeLon180(pt.Lon()), pt.Lat()})
		}
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) < 4 {
			return nil, fmt.Errorf("%w: ring %d has %d points, need at least 4", domain.ErrInputValidation, k, len(r))
		}
		for _, pt := range r {
			if pt.Lat() < -90 || pt.Lat() > 90 || pt.Lon() < -180 || pt.Lon() > 180 {
				return nil, fmt.Errorf("%w: ring %d has non-geographic coordinate (%.4f, %.4f)",
					domain.ErrInputValidation, k, pt.Lon(), pt.Lat())
			}
		}
		out[k] = r
	}
	return out, nil
}

// Bound returns the extent of all polygons.
func (r *Region) Bound() orb.Bound {
	b := r.prepared[0].bound
	for _, pp := range r.prepared[1:] {
		b = b.Union(pp.bound)
	}
	return b
}

// PolygonsAt returns the indices of the polygons containing (lon, lat).
func (r *Region) PolygonsAt(lon, lat float64) []int {
	pt := orb.Point{domain.NormalizeLon180(lon), lat}
	box := &geom.Bounds{
		Min: geom.Point{X: pt.Lon() - searchEpsilon, Y: pt.Lat() - searchEpsilon},
		Max: geom.Point{X: pt.Lon() + searchEpsilon, Y: pt.Lat() + searchEpsilon},
	}
	var hits []int
	for _, g := range r.tree.SearchIntersect(box) {
		pb, ok := g.(*polygonBounds)
		if !ok {
			continue
		}
		if r.prepared[pb.index].contains(pt) {
			hits = append(hits, pb.index)
		}
	}
	sort.Ints(hits)
	return hits
}

// Contains reports whether any polygon of the region contains (lon, lat).
func (r *Region) Contains(lon, lat float64) bool {
	return len(r.PolygonsAt(lon, lat)) > 0
}
