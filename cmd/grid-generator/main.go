// Command grid-generator writes a synthetic GRACE/GLDAS input set, a region
// and a run manifest so the pipeline can be exercised without real data.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/storage-anomaly/internal/domain"
)

const fillValue float32 = -99999

// RegionalGrid defines the geographic bounds and resolution.
type RegionalGrid struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

func (g RegionalGrid) axes() (lats, lons []float64) {
	nLat := int(math.Round((g.LatMax-g.LatMin)/g.Resolution)) + 1
	nLon := int(math.Round((g.LonMax-g.LonMin)/g.Resolution)) + 1
	for i := 0; i < nLat; i++ {
		lats = append(lats, g.LatMin+float64(i)*g.Resolution)
	}
	for i := 0; i < nLon; i++ {
		lons = append(lons, g.LonMin+float64(i)*g.Resolution)
	}
	return lats, lons
}

// point addresses one value of a synthetic variable.
type point struct {
	t, layer int
	j, i     int // Latitude and longitude indices.
	lat, lon float64
}

// variable is one synthetic data variable. value returns NaN for a fill.
type variable struct {
	name, units, longName string
	depth                 int // Soil layers; 0 means (time, lat, lon).
	value                 func(p point) float64
}

func main() {
	outDir := flag.String("out", "./data/synthetic", "Output directory")
	latMin := flag.Float64("lat-min", 20.0, "Minimum latitude")
	latMax := flag.Float64("lat-max", 27.0, "Maximum latitude")
	lonMin := flag.Float64("lon-min", 88.0, "Minimum longitude")
	lonMax := flag.Float64("lon-max", 93.0, "Maximum longitude")
	resolution := flag.Float64("resolution", 0.5, "Grid resolution in degrees")
	start := flag.String("start", "2003-01", "First month (YYYY-MM)")
	months := flag.Int("months", 72, "Number of months")
	models := flag.String("models", "NOAH,VIC", "Comma-separated land surface models")
	flag.Parse()

	grid := RegionalGrid{LatMin: *latMin, LatMax: *latMax, LonMin: *lonMin, LonMax: *lonMax, Resolution: *resolution}
	first, err := time.Parse("2006-01", *start)
	if err != nil {
		log.Fatalf("Invalid start month: %v", err)
	}
	if *months < 12 {
		log.Fatalf("At least 12 months are required, got %d", *months)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	lats, lons := grid.axes()
	log.Printf("Grid: %.1f°-%.1f°N, %.1f°-%.1f°E, resolution: %.2f° (%d × %d points)",
		grid.LatMin, grid.LatMax, grid.LonMin, grid.LonMax, grid.Resolution, len(lats), len(lons))

	// GRACE samples sit mid-month with an occasional missing month.
	var graceTimes []time.Time
	for m := 0; m < *months; m++ {
		if m%17 == 16 {
			continue
		}
		graceTimes = append(graceTimes, first.AddDate(0, m, 14))
	}
	grace := variable{
		name:     "lwe_thickness",
		units:    "cm",
		longName: "Liquid_Water_Equivalent_Thickness",
		value: func(p point) float64 {
			mt := graceTimes[p.t]
			phase := 2 * math.Pi * float64(mt.Month()-1) / 12
			trend := -0.02 * mt.Sub(first).Hours() / 24 / 30
			return 12*math.Sin(phase+p.lon/30) + trend + 0.5*math.Cos(p.lat)
		},
	}
	gracePath := filepath.Join(*outDir, "GRC_mascon.nc")
	if err := writeNetCDF(gracePath, graceTimes, lats, lons, []variable{grace}, map[string]string{
		"title":       "Synthetic GRACE mascon",
		"institution": "synthetic",
	}); err != nil {
		log.Fatalf("Failed to write GRACE file: %v", err)
	}
	log.Printf("✓ Generated %s (%d samples)", gracePath, len(graceTimes))

	scalePath := filepath.Join(*outDir, "CLM4_scale.nc")
	if err := writeScale(scalePath, lats, lons); err != nil {
		log.Fatalf("Failed to write scale file: %v", err)
	}
	log.Printf("✓ Generated %s", scalePath)

	ldasTimes := make([]time.Time, *months)
	for m := range ldasTimes {
		ldasTimes[m] = first.AddDate(0, m, 0)
	}
	var modelNames []domain.Model
	for _, s := range strings.Split(*models, ",") {
		model, err := domain.ParseModel(s)
		if err != nil {
			log.Fatalf("%v", err)
		}
		modelNames = append(modelNames, model)
		path := filepath.Join(*outDir, fmt.Sprintf("GLDAS_%s.nc", model))
		if err := writeNetCDF(path, ldasTimes, lats, lons, ldasVariables(model, ldasTimes), map[string]string{
			"title":       fmt.Sprintf("Synthetic GLDAS %s monthly", model),
			"institution": "synthetic",
		}); err != nil {
			log.Fatalf("Failed to write %s file: %v", model, err)
		}
		log.Printf("✓ Generated %s", path)
	}

	regionPath := filepath.Join(*outDir, "basin.geojson")
	if err := writeRegion(regionPath, grid); err != nil {
		log.Fatalf("Failed to write region: %v", err)
	}
	manifestPath := filepath.Join(*outDir, "run.toml")
	if err := writeManifest(manifestPath, modelNames); err != nil {
		log.Fatalf("Failed to write manifest: %v", err)
	}

	log.Printf("\n=== Generation Complete ===")
	log.Printf("Files created in: %s", *outDir)
	log.Printf("Run: storage-anomaly -manifest %s", manifestPath)
}

func ldasVariables(model domain.Model, times []time.Time) []variable {
	seasonal := func(t int, shift float64) float64 {
		return math.Sin(2*math.Pi*float64(times[t].Month()-1)/12 + shift)
	}
	return []variable{
		{
			name:     domain.ComponentSoilMoisture.VariableName(model),
			units:    "kg/m2",
			longName: "Soil moisture content",
			depth:    4,
			value: func(p point) float64 {
				// The first cell has no deepest layer.
				if p.layer == 3 && p.j == 0 && p.i == 0 {
					return math.NaN()
				}
				return 50*float64(p.layer+1) + 40*seasonal(p.t, p.lon/30)
			},
		},
		{
			name:     domain.ComponentCanopy.VariableName(model),
			units:    "kg/m2",
			longName: "Plant canopy surface water",
			value: func(p point) float64 {
				return 0.3 + 0.2*seasonal(p.t, 0)
			},
		},
		{
			name:     domain.ComponentSnow.VariableName(model),
			units:    "kg/m2",
			longName: "Snow depth water equivalent",
			value: func(p point) float64 {
				return math.Max(0, 5*seasonal(p.t, math.Pi)) * math.Abs(p.lat) / 90
			},
		},
	}
}

// writeNetCDF writes a CF-style file with the given variables.
func writeNetCDF(path string, times []time.Time, lats, lons []float64, vars []variable, global map[string]string) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	timeDim, err := ds.AddDim("time", uint64(len(times)))
	if err != nil {
		return err
	}
	latDim, err := ds.AddDim("lat", uint64(len(lats)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(len(lons)))
	if err != nil {
		return err
	}
	var depthDim netcdf.Dim
	for _, v := range vars {
		if v.depth > 0 {
			if depthDim, err = ds.AddDim("depth", uint64(v.depth)); err != nil {
				return err
			}
			break
		}
	}

	timeVar, err := ds.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	if err := timeVar.Attr("units").WriteBytes([]byte("days since 2002-01-01 00:00:00")); err != nil {
		return err
	}
	latVar, err := ds.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}

	dataVars := make([]netcdf.Var, len(vars))
	for k, v := range vars {
		dims := []netcdf.Dim{timeDim, latDim, lonDim}
		if v.depth > 0 {
			dims = []netcdf.Dim{timeDim, depthDim, latDim, lonDim}
		}
		dv, err := ds.AddVar(v.name, netcdf.FLOAT, dims)
		if err != nil {
			return err
		}
		if err := dv.Attr("units").WriteBytes([]byte(v.units)); err != nil {
			return err
		}
		if err := dv.Attr("long_name").WriteBytes([]byte(v.longName)); err != nil {
			return err
		}
		if err := dv.Attr("_FillValue").WriteFloat32s([]float32{fillValue}); err != nil {
			return err
		}
		dataVars[k] = dv
	}
	for key, value := range global {
		if err := ds.Attr(key).WriteBytes([]byte(value)); err != nil {
			return err
		}
	}
	if err := ds.EndDef(); err != nil {
		return err
	}

	ref := time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := make([]float64, len(times))
	for i, t := range times {
		offsets[i] = t.Sub(ref).Hours() / 24
	}
	if err := timeVar.WriteFloat64s(offsets); err != nil {
		return err
	}
	if err := latVar.WriteFloat64s(lats); err != nil {
		return err
	}
	if err := lonVar.WriteFloat64s(lons); err != nil {
		return err
	}

	for k, v := range vars {
		layers := max(v.depth, 1)
		data := make([]float32, 0, len(times)*layers*len(lats)*len(lons))
		for t := range times {
			for layer := 0; layer < layers; layer++ {
				for j, lat := range lats {
					for i, lon := range lons {
						x := v.value(point{t: t, layer: layer, j: j, i: i, lat: lat, lon: lon})
						if math.IsNaN(x) {
							data = append(data, fillValue)
							continue
						}
						data = append(data, float32(x))
					}
				}
			}
		}
		if err := dataVars[k].WriteFloat32s(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", v.name, err)
		}
	}
	return nil
}

// writeScale writes a scale factor grid near one with a masked ocean corner.
func writeScale(path string, lats, lons []float64) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	latDim, err := ds.AddDim("lat", uint64(len(lats)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(len(lons)))
	if err != nil {
		return err
	}
	latVar, err := ds.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}
	scaleVar, err := ds.AddVar("scale_factor", netcdf.FLOAT, []netcdf.Dim{latDim, lonDim})
	if err != nil {
		return err
	}
	if err := scaleVar.Attr("_FillValue").WriteFloat32s([]float32{fillValue}); err != nil {
		return err
	}
	if err := ds.EndDef(); err != nil {
		return err
	}
	if err := latVar.WriteFloat64s(lats); err != nil {
		return err
	}
	if err := lonVar.WriteFloat64s(lons); err != nil {
		return err
	}
	data := make([]float32, 0, len(lats)*len(lons))
	for j := range lats {
		for i := range lons {
			if j == 0 && i == len(lons)-1 {
				data = append(data, fillValue)
				continue
			}
			data = append(data, float32(1+0.05*math.Sin(float64(i+j))))
		}
	}
	return scaleVar.WriteFloat32s(data)
}

// writeRegion writes a GeoJSON polygon over the inner part of the grid.
func writeRegion(path string, g RegionalGrid) error {
	dLat := (g.LatMax - g.LatMin) / 4
	dLon := (g.LonMax - g.LonMin) / 4
	x0, x1 := g.LonMin+dLon, g.LonMax-dLon
	y0, y1 := g.LatMin+dLat, g.LatMax-dLat
	body := fmt.Sprintf(`{"type":"Feature","properties":{"name":"basin"},"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0)
	return os.WriteFile(path, []byte(body+"\n"), 0o644)
}

func writeManifest(path string, models []domain.Model) error {
	var b strings.Builder
	b.WriteString("missing_policy = \"zero\"\nworkers = 2\n\n")
	b.WriteString("[grace]\npath = \"GRC_mascon.nc\"\nscale_path = \"CLM4_scale.nc\"\n\n")
	for _, m := range models {
		fmt.Fprintf(&b, "[[ldas]]\nmodel = %q\npath = \"GLDAS_%s.nc\"\n\n", m, m)
	}
	b.WriteString("[[region]]\npath = \"basin.geojson\"\n\n[output]\ndir = \"output\"\n")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
