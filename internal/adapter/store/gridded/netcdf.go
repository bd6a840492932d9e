// Package gridded reads and writes gridded water storage NetCDF files.
package gridded

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/storage-anomaly/internal/adapter/interp"
	"go.ngs.io/storage-anomaly/internal/domain"
)

// FileConfig defines the coordinate variable names tried in order.
type FileConfig struct {
	LatNames  []string
	LonNames  []string
	TimeNames []string
}

// DefaultConfig returns the coordinate names used by GRACE and GLDAS files.
func DefaultConfig() FileConfig {
	return FileConfig{
		LatNames:  []string{"lat", "latitude", "y"},
		LonNames:  []string{"lon", "longitude", "x"},
		TimeNames: []string{"time", "t"},
	}
}

// copiedVarAttrs are the variable attributes carried from inputs to outputs.
var copiedVarAttrs = []string{"standard_name", "long_name", "units", "axis", "calendar", "bounds", "grid_mapping", "cell_methods"}

// copiedGlobalAttrs are the global attributes carried from inputs to outputs.
var copiedGlobalAttrs = []string{"title", "institution", "source", "references", "Conventions"}

// scaleVarNames are the variable names tried for a GRACE scale factor grid.
var scaleVarNames = []string{"scale_factor", "SCALE_FACTOR", "scale"}

// ReadDataset loads the named variables of a NetCDF file into memory.
// Variables shaped (time, lat, lon) are read as is; variables shaped
// (time, depth, lat, lon) are summed over depth.
//
//nolint:gosec // G304: path comes from the run configuration.
func ReadDataset(path, name string, variables []string, cfg FileConfig) (*domain.Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	lats, err := readCoordinate(nc, cfg.LatNames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: latitude: %v", domain.ErrInputValidation, path, err)
	}
	lons, err := readCoordinate(nc, cfg.LonNames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: longitude: %v", domain.ErrInputValidation, path, err)
	}
	grid, err := domain.NewGrid(lons, lats)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	times, err := readTimeAxis(nc, cfg.TimeNames)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: time: %v", domain.ErrInputValidation, path, err)
	}

	ds := &domain.Dataset{
		Name:  name,
		Grid:  grid,
		Times: times,
		Attrs: make(map[string]string),
	}
	for _, key := range copiedGlobalAttrs {
		if s, ok := attrString(nc.Attr(key)); ok {
			ds.Attrs[key] = s
		}
	}

	for _, varName := range variables {
		f, err := readField(nc, varName, len(times), len(lats), len(lons))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ds.Fields = append(ds.Fields, f)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadScaleGrid loads a 2-D scale factor grid and checks that it shares
// the coordinates of grid exactly. Fill values become NaN.
func ReadScaleGrid(path string, grid domain.Grid, cfg FileConfig) ([][]float64, error) {
	src, scale, err := readScale(path, cfg)
	if err != nil {
		return nil, err
	}
	if !grid.Equal(src) {
		return nil, fmt.Errorf("%w: scale factor grid in %s does not match the data grid", domain.ErrInputValidation, path)
	}
	return scale, nil
}

// RegridScaleGrid loads a 2-D scale factor grid and resamples it bilinearly
// onto grid when the coordinates differ. Cells outside the scale grid or
// next to a masked scale value are masked.
func RegridScaleGrid(path string, grid domain.Grid, cfg FileConfig) ([][]float64, error) {
	src, scale, err := readScale(path, cfg)
	if err != nil {
		return nil, err
	}
	if grid.Equal(src) {
		return scale, nil
	}
	out, err := interp.Regrid(&interp.Grid2D{X: src.Lons, Y: src.Lats, Values: scale}, grid.Lons, grid.Lats)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInputValidation, path, err)
	}
	return out, nil
}

//nolint:gosec // G304: path comes from the run configuration.
func readScale(path string, cfg FileConfig) (domain.Grid, [][]float64, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return domain.Grid{}, nil, fmt.Errorf("failed to open scale factor file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	lats, err := readCoordinate(nc, cfg.LatNames)
	if err != nil {
		return domain.Grid{}, nil, fmt.Errorf("%w: %s: latitude: %v", domain.ErrInputValidation, path, err)
	}
	lons, err := readCoordinate(nc, cfg.LonNames)
	if err != nil {
		return domain.Grid{}, nil, fmt.Errorf("%w: %s: longitude: %v", domain.ErrInputValidation, path, err)
	}
	grid := domain.Grid{Lons: lons, Lats: lats}

	var v netcdf.Var
	found := false
	for _, name := range scaleVarNames {
		if cand, err := nc.Var(name); err == nil {
			v = cand
			found = true
			break
		}
	}
	if !found {
		return domain.Grid{}, nil, fmt.Errorf("%w: scale factor variable not found in %s (tried: %v)", domain.ErrInputValidation, path, scaleVarNames)
	}

	nLat, nLon := len(lats), len(lons)
	dims, err := v.Dims()
	if err != nil {
		return domain.Grid{}, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 2 {
		return domain.Grid{}, nil, fmt.Errorf("%w: expected 2D scale factor, got %dD", domain.ErrInputValidation, len(dims))
	}
	transposed, err := lonFirst(dims, nLat, nLon)
	if err != nil {
		return domain.Grid{}, nil, err
	}

	flat, err := readAll(v, nLat*nLon)
	if err != nil {
		return domain.Grid{}, nil, fmt.Errorf("failed to read scale factor: %w", err)
	}
	maskAndUnpack(v, flat)

	out := make([][]float64, nLat)
	for j := range out {
		out[j] = make([]float64, nLon)
		for i := range out[j] {
			if transposed {
				out[j][i] = flat[i*nLat+j]
			} else {
				out[j][i] = flat[j*nLon+i]
			}
		}
	}
	return grid, out, nil
}

// readField reads one variable into [time][lat][lon], summing a depth axis.
func readField(nc netcdf.Dataset, name string, nTime, nLat, nLon int) (*domain.Field, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("%w: variable %s not found", domain.ErrInputValidation, name)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions of %s: %w", name, err)
	}

	nDepth := 1
	switch len(dims) {
	case 3:
	case 4:
		n, err := dims[1].Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get depth length of %s: %w", name, err)
		}
		nDepth = int(n)
	default:
		return nil, fmt.Errorf("%w: variable %s must be 3D or 4D, got %dD", domain.ErrInputValidation, name, len(dims))
	}

	n0, err := dims[0].Len()
	if err != nil {
		return nil, fmt.Errorf("failed to get time length of %s: %w", name, err)
	}
	if int(n0) != nTime {
		return nil, fmt.Errorf("%w: variable %s has %d time steps, time axis has %d", domain.ErrInputValidation, name, n0, nTime)
	}
	transposed, err := lonFirst(dims[len(dims)-2:], nLat, nLon)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}

	plane := nLat * nLon
	flat, err := readAll(v, nTime*nDepth*plane)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	fill, hasFill := getFillValue(v)
	maskAndUnpack(v, flat)

	values := make([][][]float64, nTime)
	for t := 0; t < nTime; t++ {
		slab := make([][]float64, nLat)
		for j := range slab {
			slab[j] = make([]float64, nLon)
		}
		for d := 0; d < nDepth; d++ {
			base := (t*nDepth + d) * plane
			for j := 0; j < nLat; j++ {
				for i := 0; i < nLon; i++ {
					var x float64
					if transposed {
						x = flat[base+i*nLat+j]
					} else {
						x = flat[base+j*nLon+i]
					}
					// A missing layer makes the column sum missing.
					slab[j][i] += x
				}
			}
		}
		values[t] = slab
	}

	f := &domain.Field{
		Name:      name,
		Values:    values,
		FillValue: fill,
		HasFill:   hasFill,
		Attrs:     make(map[string]string),
	}
	for _, key := range copiedVarAttrs {
		if s, ok := attrString(v.Attr(key)); ok {
			f.Attrs[key] = s
		}
	}
	f.Unit = f.Attrs["units"]
	if nDepth > 1 && f.Unit == "" {
		f.Unit = "kg/m2"
	}
	return f, nil
}

// lonFirst reports whether the trailing two dims are ordered (lon, lat).
func lonFirst(dims []netcdf.Dim, nLat, nLon int) (bool, error) {
	d0, err := dims[0].Len()
	if err != nil {
		return false, fmt.Errorf("failed to get dim0 length: %w", err)
	}
	d1, err := dims[1].Len()
	if err != nil {
		return false, fmt.Errorf("failed to get dim1 length: %w", err)
	}
	switch {
	case int(d0) == nLat && int(d1) == nLon:
		return false, nil
	case int(d0) == nLon && int(d1) == nLat:
		return true, nil
	default:
		return false, fmt.Errorf("%w: dimension mismatch: data is [%d, %d], expected [%d, %d] or [%d, %d]",
			domain.ErrInputValidation, d0, d1, nLat, nLon, nLon, nLat)
	}
}

// maskAndUnpack replaces fill values with NaN, then applies scale_factor
// and add_offset packing attributes.
func maskAndUnpack(v netcdf.Var, data []float64) {
	if fv, ok := getFillValue(v); ok {
		for i, x := range data {
			if x == fv || (math.Abs(fv) > 1e30 && math.Abs(x) > 1e30) {
				data[i] = domain.Missing
			}
		}
	}
	scale, hasScale := attrFloat(v.Attr("scale_factor"))
	offset, hasOffset := attrFloat(v.Attr("add_offset"))
	if !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}
	for i, x := range data {
		data[i] = x*scale + offset
	}
}

// getFillValue returns the _FillValue or missing_value attribute if present.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if fv, ok := attrFloat(v.Attr(name)); ok {
			return fv, true
		}
	}
	return 0, false
}

// attrFloat reads the first value of a numeric attribute.
func attrFloat(a netcdf.Attr) (float64, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	t, err := a.Type()
	if err != nil {
		return 0, false
	}
	switch t {
	case netcdf.DOUBLE:
		buf := make([]float64, n)
		if err := a.ReadFloat64s(buf); err == nil {
			return buf[0], true
		}
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err == nil {
			return float64(buf[0]), true
		}
	case netcdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err == nil {
			return float64(buf[0]), true
		}
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err := a.ReadInt16s(buf); err == nil {
			return float64(buf[0]), true
		}
	}
	return 0, false
}

// attrString reads a text attribute.
func attrString(a netcdf.Attr) (string, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	if t, err := a.Type(); err != nil || t != netcdf.CHAR {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return strings.TrimRight(string(buf), "\x00"), true
}

// readCoordinate reads the first 1-D variable found among names.
func readCoordinate(nc netcdf.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		data, err := readFloat64Var(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("variable not found (tried: %v)", names)
}

// readTimeAxis reads a CF time coordinate into UTC instants.
func readTimeAxis(nc netcdf.Dataset, names []string) ([]time.Time, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		offsets, err := readFloat64Var(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		units, ok := attrString(v.Attr("units"))
		if !ok {
			return nil, fmt.Errorf("time variable %s has no units attribute", name)
		}
		return DecodeTimes(offsets, units)
	}
	return nil, fmt.Errorf("variable not found (tried: %v)", names)
}

// readFloat64Var reads a 1D numeric variable as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readAll(v, int(length))
}

// readAll reads total values of any supported numeric type as float64.
func readAll(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	out := make([]float64, total)
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
	return out, nil
}
