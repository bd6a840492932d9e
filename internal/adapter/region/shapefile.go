package region

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// LoadShapefile reads every polygon of a shapefile into one region. The
// sibling .prj file must describe a geographic coordinate system.
//
//nolint:gosec // G304: path comes from the run configuration.
func LoadShapefile(path, name string) (*spatial.Region, error) {
	prjPath := strings.TrimSuffix(path, ".shp") + ".prj"
	wkt, err := os.ReadFile(prjPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read projection file %s: %v", domain.ErrInputValidation, prjPath, err)
	}
	if err := CheckCRS(string(wkt)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	trans, err := newTransform(string(wkt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer dec.Close()

	var polys []orb.Polygon
	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("failed to transform shape in %s: %w", path, err)
		}
		pg, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("%w: %s contains a %T shape, only polygons are supported",
				domain.ErrInputValidation, path, gg)
		}
		for _, p := range pg.Polygons() {
			polys = append(polys, splitRings(toRings(p))...)
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}

	return spatial.NewRegion(name, polys)
}

func toRings(p geom.Polygon) []orb.Ring {
	rings := make([]orb.Ring, 0, len(p))
	for _, path := range p {
		ring := make(orb.Ring, len(path))
		for i, pt := range path {
			ring[i] = orb.Point{pt.X, pt.Y}
		}
		rings = append(rings, ring)
	}
	return rings
}

// splitRings groups the rings of a shapefile record into polygons. A ring
// nested inside an odd number of other rings is a hole of its nearest
// enclosing outer ring.
func splitRings(rings []orb.Ring) []orb.Polygon {
	depth := make([]int, len(rings))
	for i, r := range rings {
		if len(r) == 0 {
			continue
		}
		for k, other := range rings {
			if k != i && len(other) > 0 && planar.RingContains(other, r[0]) {
				depth[i]++
			}
		}
	}

	var polys []orb.Polygon
	owner := make(map[int]int) // ring index -> polygon index
	for i, r := range rings {
		if depth[i]%2 == 0 {
			owner[i] = len(polys)
			polys = append(polys, orb.Polygon{r})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		for k, outer := range rings {
			if depth[k] == depth[i]-1 && planar.RingContains(outer, r[0]) {
				p := owner[k]
				polys[p] = append(polys[p], r)
				break
			}
		}
	}
	return polys
}
