// Package region loads study regions from shapefiles and GeoJSON documents.
package region

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// TargetProj is the coordinate system regions are delivered in.
const TargetProj = "+proj=longlat +datum=WGS84 +no_defs"

// SupportedCRS lists the geographic systems accepted for inputs.
var SupportedCRS = []string{"EPSG:4326", "EPSG:4269", "EPSG:4267"}

// CheckCRS rejects projected and undefined coordinate systems given as WKT.
func CheckCRS(wkt string) error {
	switch {
	case strings.Contains(wkt, "PROJCS"):
		return fmt.Errorf("%w: the region uses a projected coordinate system; use one of %v",
			domain.ErrInputValidation, SupportedCRS)
	case !strings.Contains(wkt, "GEOGCS"):
		return fmt.Errorf("%w: the region coordinate system is undefined; use one of %v",
			domain.ErrInputValidation, SupportedCRS)
	}
	return nil
}

// newTransform builds a transformation from the WKT system to TargetProj.
func newTransform(wkt string) (proj.Transformer, error) {
	src, err := proj.Parse(wkt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse coordinate system: %v", domain.ErrInputValidation, err)
	}
	dst, err := proj.Parse(TargetProj)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target coordinate system: %w", err)
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinate transform: %w", err)
	}
	return trans, nil
}
