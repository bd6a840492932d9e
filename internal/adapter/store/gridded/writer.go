package gridded

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/jonboulle/clockwork"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// DefaultFillValue is written where no anomaly is defined.
const DefaultFillValue float32 = -99999

// OutputVariable is one anomaly grid to write, laid out [time][lat][lon].
type OutputVariable struct {
	Name   string
	Values [][][]float64
	Source *domain.Field // Metadata source, optional.
}

// Output describes one gridded anomaly file.
type Output struct {
	Dataset   *domain.Dataset
	Variables []OutputVariable
	RunID     string
	Region    string
}

// Writer writes CF-style anomaly grids.
type Writer struct {
	clock     clockwork.Clock
	FillValue float32
}

// NewWriter creates a writer stamping history with clock.
func NewWriter(clock clockwork.Clock) *Writer {
	return &Writer{clock: clock, FillValue: DefaultFillValue}
}

// Write creates path with the dataset's grid and time axis and the anomaly
// variables. Positions holding NaN are written as the fill value declared
// by the variable's source field, or the writer's FillValue.
func (w *Writer) Write(path string, out Output) error {
	ds := out.Dataset
	if ds == nil {
		return fmt.Errorf("no dataset to write")
	}
	nT, nLat, nLon := len(ds.Times), len(ds.Grid.Lats), len(ds.Grid.Lons)
	for _, ov := range out.Variables {
		if len(ov.Values) != nT {
			return fmt.Errorf("variable %s has %d steps, expected %d", ov.Name, len(ov.Values), nT)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	timeDim, err := f.AddDim("time", uint64(nT))
	if err != nil {
		return fmt.Errorf("failed to add time dimension: %w", err)
	}
	latDim, err := f.AddDim("lat", uint64(nLat))
	if err != nil {
		return fmt.Errorf("failed to add lat dimension: %w", err)
	}
	lonDim, err := f.AddDim("lon", uint64(nLon))
	if err != nil {
		return fmt.Errorf("failed to add lon dimension: %w", err)
	}

	vTime, err := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("failed to add time variable: %w", err)
	}
	vLat, err := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return fmt.Errorf("failed to add lat variable: %w", err)
	}
	vLon, err := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return fmt.Errorf("failed to add lon variable: %w", err)
	}
	vCRS, err := f.AddVar("crs", netcdf.INT, nil)
	if err != nil {
		return fmt.Errorf("failed to add crs variable: %w", err)
	}

	attrs := []struct {
		v          netcdf.Var
		key, value string
	}{
		{vTime, "standard_name", "time"},
		{vTime, "long_name", "time"},
		{vTime, "units", OutputTimeUnits},
		{vTime, "calendar", "standard"},
		{vTime, "axis", "T"},
		{vLat, "standard_name", "latitude"},
		{vLat, "long_name", "latitude"},
		{vLat, "units", "degrees_north"},
		{vLat, "axis", "Y"},
		{vLon, "standard_name", "longitude"},
		{vLon, "long_name", "longitude"},
		{vLon, "units", "degrees_east"},
		{vLon, "axis", "X"},
		{vCRS, "grid_mapping_name", "latitude_longitude"},
		{vCRS, "long_name", "CRS definition"},
	}
	for _, a := range attrs {
		if err := a.v.Attr(a.key).WriteBytes([]byte(a.value)); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", a.key, err)
		}
	}
	if err := vCRS.Attr("semi_major_axis").WriteFloat64s([]float64{6378137.0}); err != nil {
		return fmt.Errorf("failed to write crs attribute: %w", err)
	}
	if err := vCRS.Attr("inverse_flattening").WriteFloat64s([]float64{298.257223563}); err != nil {
		return fmt.Errorf("failed to write crs attribute: %w", err)
	}

	dataVars := make([]netcdf.Var, len(out.Variables))
	fills := make([]float32, len(out.Variables))
	for k, ov := range out.Variables {
		fills[k] = w.FillValue
		if ov.Source != nil && ov.Source.HasFill {
			fills[k] = float32(ov.Source.FillValue)
		}
		v, err := f.AddVar(ov.Name, netcdf.FLOAT, []netcdf.Dim{timeDim, latDim, lonDim})
		if err != nil {
			return fmt.Errorf("failed to add variable %s: %w", ov.Name, err)
		}
		if ov.Source != nil {
			for _, key := range []string{"standard_name", "long_name", "cell_methods"} {
				if s, ok := ov.Source.Attrs[key]; ok && s != "" {
					if err := v.Attr(key).WriteBytes([]byte(s)); err != nil {
						return fmt.Errorf("failed to write attribute %s of %s: %w", key, ov.Name, err)
					}
				}
			}
		}
		if err := v.Attr("units").WriteBytes([]byte("cm")); err != nil {
			return fmt.Errorf("failed to write units of %s: %w", ov.Name, err)
		}
		if err := v.Attr("grid_mapping").WriteBytes([]byte("crs")); err != nil {
			return fmt.Errorf("failed to write grid_mapping of %s: %w", ov.Name, err)
		}
		if err := v.Attr("_FillValue").WriteFloat32s([]float32{fills[k]}); err != nil {
			return fmt.Errorf("failed to write _FillValue of %s: %w", ov.Name, err)
		}
		dataVars[k] = v
	}

	global := map[string]string{
		"Conventions": "CF-1.6",
		"title":       "Water storage anomalies",
		"history":     "date created: " + w.clock.Now().UTC().Format(time.RFC3339),
		"featureType": "timeSeries",
		"source":      ds.Name,
	}
	if out.Region != "" {
		global["region"] = out.Region
	}
	if out.RunID != "" {
		global["run_id"] = out.RunID
	}
	for _, key := range []string{"institution", "references"} {
		if s, ok := ds.Attrs[key]; ok {
			global[key] = s
		}
	}
	for key, value := range global {
		if err := f.Attr(key).WriteBytes([]byte(value)); err != nil {
			return fmt.Errorf("failed to write global attribute %s: %w", key, err)
		}
	}

	if err := f.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	if err := vTime.WriteFloat64s(EncodeTimes(ds.Times)); err != nil {
		return fmt.Errorf("failed to write time: %w", err)
	}
	if err := vLat.WriteFloat64s(ds.Grid.Lats); err != nil {
		return fmt.Errorf("failed to write lat: %w", err)
	}
	if err := vLon.WriteFloat64s(ds.Grid.Lons); err != nil {
		return fmt.Errorf("failed to write lon: %w", err)
	}
	if err := vCRS.WriteInt32s([]int32{0}); err != nil {
		return fmt.Errorf("failed to write crs: %w", err)
	}

	for k, ov := range out.Variables {
		flat := make([]float32, 0, nT*nLat*nLon)
		for _, slab := range ov.Values {
			for _, row := range slab {
				for _, x := range row {
					if math.IsNaN(x) {
						flat = append(flat, fills[k])
						continue
					}
					flat = append(flat, float32(x))
				}
			}
		}
		if len(flat) != nT*nLat*nLon {
			return fmt.Errorf("variable %s has %d values, expected %d", ov.Name, len(flat), nT*nLat*nLon)
		}
		if err := dataVars[k].WriteFloat32s(flat); err != nil {
			return fmt.Errorf("failed to write %s: %w", ov.Name, err)
		}
	}
	return nil
}
