package region

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// geographicCRSNames are the named CRS members accepted in GeoJSON input.
var geographicCRSNames = []string{"CRS84", "EPSG::4326", "EPSG:4326", "EPSG::4269", "EPSG:4269", "EPSG::4267", "EPSG:4267"}

type envelope struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// LoadGeoJSON reads a GeoJSON file into one region.
//
//nolint:gosec // G304: path comes from the run configuration.
func LoadGeoJSON(path, name string) (*spatial.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON file %s: %w", path, err)
	}
	r, err := ParseGeoJSON(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseGeoJSON builds a region from a Feature, FeatureCollection or bare
// Polygon/MultiPolygon geometry. When name is empty the "name" property of
// the first feature is used.
func ParseGeoJSON(name string, data []byte) (*spatial.Region, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: invalid GeoJSON: %v", domain.ErrInputValidation, err)
	}
	if env.CRS != nil {
		if err := checkNamedCRS(env.CRS.Properties.Name); err != nil {
			return nil, err
		}
	}

	var geoms []orb.Geometry
	switch env.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid feature collection: %v", domain.ErrInputValidation, err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
			if name == "" {
				name = f.Properties.MustString("name", "")
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid feature: %v", domain.ErrInputValidation, err)
		}
		geoms = append(geoms, f.Geometry)
		if name == "" {
			name = f.Properties.MustString("name", "")
		}
	case "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid geometry: %v", domain.ErrInputValidation, err)
		}
		geoms = append(geoms, g.Geometry())
	default:
		return nil, fmt.Errorf("%w: unsupported GeoJSON type %q", domain.ErrInputValidation, env.Type)
	}

	var polys []orb.Polygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			polys = append(polys, v)
		case orb.MultiPolygon:
			polys = append(polys, v...)
		case nil:
			return nil, fmt.Errorf("%w: feature without geometry", domain.ErrInputValidation)
		default:
			return nil, fmt.Errorf("%w: unsupported geometry %s, only polygons are supported",
				domain.ErrInputValidation, g.GeoJSONType())
		}
	}
	if name == "" {
		name = "region"
	}
	return spatial.NewRegion(name, polys)
}

func checkNamedCRS(crs string) error {
	for _, ok := range geographicCRSNames {
		if strings.HasSuffix(crs, ok) {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported coordinate system %q; use one of %v",
		domain.ErrInputValidation, crs, SupportedCRS)
}
