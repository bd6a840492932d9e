package region

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// Load reads a region file, choosing the decoder by extension.
func Load(path, name string) (*spatial.Region, error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path, name)
	case ".geojson", ".json":
		return LoadGeoJSON(path, name)
	default:
		return nil, fmt.Errorf("%w: unsupported region file %s (expected .shp or .geojson)",
			domain.ErrInputValidation, path)
	}
}
