package gridded

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/storage-anomaly/internal/domain"
)

const fixtureFill float32 = -99999

// createGRACENC writes a 2-step, 2x3 grid with a cm variable "lwe_thickness"
// and a 4D "SoilMoist" with two layers.
func createGRACENC(t *testing.T, path string, lwe []float32, soil []float32) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer func() { _ = f.Close() }()

	timeDim, _ := f.AddDim("time", 2)
	depthDim, _ := f.AddDim("depth", 2)
	latDim, _ := f.AddDim("lat", 2)
	lonDim, _ := f.AddDim("lon", 3)
	vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	vlat, _ := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	vlon, _ := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	vlwe, _ := f.AddVar("lwe_thickness", netcdf.FLOAT, []netcdf.Dim{timeDim, latDim, lonDim})
	vsoil, _ := f.AddVar("SoilMoist", netcdf.FLOAT, []netcdf.Dim{timeDim, depthDim, latDim, lonDim})

	if err := vtime.Attr("units").WriteBytes([]byte("days since 2002-01-01 00:00:00")); err != nil {
		t.Fatalf("time units: %v", err)
	}
	if err := vlwe.Attr("units").WriteBytes([]byte("cm")); err != nil {
		t.Fatalf("lwe units: %v", err)
	}
	if err := vlwe.Attr("long_name").WriteBytes([]byte("equivalent water thickness")); err != nil {
		t.Fatalf("lwe long_name: %v", err)
	}
	if err := vlwe.Attr("_FillValue").WriteFloat32s([]float32{fixtureFill}); err != nil {
		t.Fatalf("lwe fill: %v", err)
	}
	if err := vsoil.Attr("_FillValue").WriteFloat32s([]float32{fixtureFill}); err != nil {
		t.Fatalf("soil fill: %v", err)
	}
	if err := f.Attr("institution").WriteBytes([]byte("NASA JPL")); err != nil {
		t.Fatalf("institution: %v", err)
	}

	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}

	if err := vtime.WriteFloat64s([]float64{14, 45}); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vlat.WriteFloat64s([]float64{0, 10}); err != nil {
		t.Fatalf("write lat: %v", err)
	}
	if err := vlon.WriteFloat64s([]float64{0, 10, 20}); err != nil {
		t.Fatalf("write lon: %v", err)
	}
	if err := vlwe.WriteFloat32s(lwe); err != nil {
		t.Fatalf("write lwe: %v", err)
	}
	if err := vsoil.WriteFloat32s(soil); err != nil {
		t.Fatalf("write soil: %v", err)
	}
}

// createScaleNC writes a 2D scale factor grid with the given lons.
func createScaleNC(t *testing.T, path string, lons []float64, scale []float32) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer func() { _ = f.Close() }()

	latDim, _ := f.AddDim("lat", 2)
	lonDim, _ := f.AddDim("lon", uint64(len(lons)))
	vlat, _ := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	vlon, _ := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	vsc, _ := f.AddVar("scale_factor", netcdf.FLOAT, []netcdf.Dim{latDim, lonDim})
	if err := vsc.Attr("_FillValue").WriteFloat32s([]float32{fixtureFill}); err != nil {
		t.Fatalf("scale fill: %v", err)
	}
	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}
	if err := vlat.WriteFloat64s([]float64{0, 10}); err != nil {
		t.Fatalf("write lat: %v", err)
	}
	if err := vlon.WriteFloat64s(lons); err != nil {
		t.Fatalf("write lon: %v", err)
	}
	if err := vsc.WriteFloat32s(scale); err != nil {
		t.Fatalf("write scale: %v", err)
	}
}

func fixtureValues() ([]float32, []float32) {
	lwe := []float32{
		1, 2, 3,
		4, 5, fixtureFill,
		7, 8, 9,
		10, 11, 12,
	}
	soil := make([]float32, 2*2*2*3)
	for i := range soil {
		soil[i] = float32(i % 6)
	}
	soil[6] = fixtureFill // Second layer of the first step, cell (0,0).
	return lwe, soil
}

func TestReadDataset_GRACEVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)

	ds, err := ReadDataset(path, "GRC", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "GRC", ds.Name)
	assert.Equal(t, []float64{0, 10, 20}, ds.Grid.Lons)
	assert.Equal(t, []float64{0, 10}, ds.Grid.Lats)
	assert.Equal(t, []time.Time{
		time.Date(2002, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2002, 2, 15, 0, 0, 0, 0, time.UTC),
	}, ds.Times)
	assert.Equal(t, "NASA JPL", ds.Attrs["institution"])

	f, ok := ds.Field("lwe_thickness")
	require.True(t, ok)
	assert.Equal(t, "cm", f.Unit)
	assert.Equal(t, "equivalent water thickness", f.Attrs["long_name"])
	assert.True(t, f.HasFill)
	assert.Equal(t, 5.0, f.Values[0][1][1])
	assert.True(t, math.IsNaN(f.Values[0][1][2]), "fill value should be masked")
	assert.Equal(t, 12.0, f.Values[1][1][2])
}

func TestReadDataset_SumsDepthLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldas.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)

	ds, err := ReadDataset(path, "NOAH", []string{"SoilMoist"}, DefaultConfig())
	require.NoError(t, err)
	f, ok := ds.Field("SoilMoist")
	require.True(t, ok)

	// Both layers hold i%6 for the cell at flat position i.
	assert.Equal(t, "kg/m2", f.Unit)
	assert.True(t, math.IsNaN(f.Values[0][0][0]), "missing layer makes the column missing")
	assert.Equal(t, 2.0, f.Values[0][0][1])
	assert.Equal(t, 10.0, f.Values[1][1][2])
}

func TestReadDataset_MissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)

	_, err := ReadDataset(path, "GRC", []string{"nope"}, DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestReadScaleGrid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)
	ds, err := ReadDataset(path, "GRC", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)

	scalePath := filepath.Join(dir, "scale.nc")
	createScaleNC(t, scalePath, []float64{0, 10, 20}, []float32{1, 1.5, 2, fixtureFill, 1, 1})
	scale, err := ReadScaleGrid(scalePath, ds.Grid, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.5, scale[0][1])
	assert.True(t, math.IsNaN(scale[1][0]))

	mismatch := filepath.Join(dir, "scale_shifted.nc")
	createScaleNC(t, mismatch, []float64{0.5, 10.5, 20.5}, []float32{1, 1, 1, 1, 1, 1})
	_, err = ReadScaleGrid(mismatch, ds.Grid, DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestRegridScaleGrid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)
	ds, err := ReadDataset(path, "GRC", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)

	same := filepath.Join(dir, "scale.nc")
	createScaleNC(t, same, []float64{0, 10, 20}, []float32{1, 1.5, 2, 1, 1, 1})
	scale, err := RegridScaleGrid(same, ds.Grid, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.5, scale[0][1])

	// Scale varies along longitude only: 1 at lon -5, 2 at lon 15, 3 at lon 35.
	shifted := filepath.Join(dir, "scale_shifted.nc")
	createScaleNC(t, shifted, []float64{-5, 15, 35}, []float32{1, 2, 3, 1, 2, 3})
	scale, err = RegridScaleGrid(shifted, ds.Grid, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, scale, 2)
	for _, row := range scale {
		assert.InDelta(t, 1.25, row[0], 1e-12)
		assert.InDelta(t, 1.75, row[1], 1e-12)
		assert.InDelta(t, 2.25, row[2], 1e-12)
	}
}

func TestStore_LoadAppliesScaleAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)
	scalePath := filepath.Join(dir, "scale.nc")
	createScaleNC(t, scalePath, []float64{0, 10, 20}, []float32{1, 1.5, 2, 1, 1, 1})

	s := NewStore(
		Source{Name: "GRC", Path: path, Variables: []string{"lwe_thickness"}, ScalePath: scalePath},
		Source{Name: "NOAH", Path: path, Variables: []string{"SoilMoist"}},
	)
	assert.Equal(t, []string{"GRC", "NOAH"}, s.Names())

	ds, err := s.Load("GRC")
	require.NoError(t, err)
	require.NotNil(t, ds.Fields[0].Scale)
	assert.Equal(t, 2.0, ds.Fields[0].Scale[0][2])

	again, err := s.Load("GRC")
	require.NoError(t, err)
	assert.Same(t, ds, again)

	_, err = s.Load("CLM")
	assert.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestStore_RegridScale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)
	scalePath := filepath.Join(dir, "scale.nc")
	createScaleNC(t, scalePath, []float64{-5, 15, 35}, []float32{1, 2, 3, 1, 2, 3})

	strict := NewStore(Source{Name: "GRC", Path: path, Variables: []string{"lwe_thickness"}, ScalePath: scalePath})
	_, err := strict.Load("GRC")
	assert.ErrorIs(t, err, domain.ErrInputValidation)

	s := NewStore(Source{Name: "GRC", Path: path, Variables: []string{"lwe_thickness"}, ScalePath: scalePath, RegridScale: true})
	ds, err := s.Load("GRC")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, ds.Fields[0].Scale[1][1], 1e-12)
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, src, lwe, soil)
	ds, err := ReadDataset(src, "GRC", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)

	srcField, ok := ds.Field("lwe_thickness")
	require.True(t, ok)
	require.True(t, srcField.HasFill)
	assert.Equal(t, float64(fixtureFill), srcField.FillValue)
	declared := *srcField
	declared.FillValue = -9999
	nan := math.NaN()
	values := [][][]float64{
		{{-1.5, 0, nan}, {nan, 2.25, nan}},
		{{1.5, 0, nan}, {nan, -2.25, nan}},
	}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	out := filepath.Join(dir, "out", "map_basin_GRC.nc")
	err = NewWriter(clock).Write(out, Output{
		Dataset:   ds,
		Variables: []OutputVariable{{Name: "GRC", Values: values, Source: &declared}},
		RunID:     "run-1",
		Region:    "basin",
	})
	require.NoError(t, err)

	back, err := ReadDataset(out, "GRC", []string{"GRC"}, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, ds.Grid.Equal(back.Grid))
	assert.Equal(t, ds.Times, back.Times)
	assert.Equal(t, "CF-1.6", back.Attrs["Conventions"])
	assert.Equal(t, "NASA JPL", back.Attrs["institution"])

	f, ok := back.Field("GRC")
	require.True(t, ok)
	assert.Equal(t, "cm", f.Unit)
	assert.Equal(t, "equivalent water thickness", f.Attrs["long_name"])
	assert.Equal(t, "crs", f.Attrs["grid_mapping"])
	assert.Equal(t, -1.5, f.Values[0][0][0])
	assert.Equal(t, 2.25, f.Values[0][1][1])
	assert.True(t, math.IsNaN(f.Values[1][0][2]))

	nc, err := netcdf.OpenFile(out, netcdf.NOWRITE)
	require.NoError(t, err)
	defer func() { _ = nc.Close() }()
	history, ok := attrString(nc.Attr("history"))
	require.True(t, ok)
	assert.Equal(t, "date created: 2024-05-01T12:00:00Z", history)
	runID, _ := attrString(nc.Attr("run_id"))
	assert.Equal(t, "run-1", runID)

	v, err := nc.Var("GRC")
	require.NoError(t, err)
	fill, ok := getFillValue(v)
	require.True(t, ok)
	assert.Equal(t, -9999.0, fill)
}

func TestWriter_DefaultFillWithoutSource(t *testing.T) {
	g, err := domain.NewGrid([]float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	ds := &domain.Dataset{
		Name:  "GRC",
		Grid:  g,
		Times: []time.Time{time.Date(2004, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	out := filepath.Join(t.TempDir(), "map.nc")
	err = NewWriter(clockwork.NewRealClock()).Write(out, Output{
		Dataset:   ds,
		Variables: []OutputVariable{{Name: "GRC", Values: [][][]float64{{{1, math.NaN()}, {2, 3}}}}},
	})
	require.NoError(t, err)

	nc, err := netcdf.OpenFile(out, netcdf.NOWRITE)
	require.NoError(t, err)
	defer func() { _ = nc.Close() }()
	v, err := nc.Var("GRC")
	require.NoError(t, err)
	fill, ok := getFillValue(v)
	require.True(t, ok)
	assert.Equal(t, float64(DefaultFillValue), fill)
}

func TestWriter_RejectsWrongStepCount(t *testing.T) {
	g, err := domain.NewGrid([]float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	ds := &domain.Dataset{Name: "GRC", Grid: g, Times: []time.Time{time.Now()}}
	err = NewWriter(clockwork.NewRealClock()).Write(filepath.Join(t.TempDir(), "x.nc"), Output{
		Dataset:   ds,
		Variables: []OutputVariable{{Name: "GRC"}},
	})
	assert.Error(t, err)
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		step  time.Duration
		ref   time.Time
	}{
		{"days since 2002-01-01 00:00:00", 24 * time.Hour, time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1980-01-01", time.Hour, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-01-01T06:00:00Z", time.Minute, time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"seconds since 1970-1-1 0:0:0", time.Second, time.Unix(0, 0).UTC()},
		{"days since 2002-01-01 00:00:00.0 UTC", 24 * time.Hour, time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, ref, err := ParseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.step, step)
			assert.True(t, tt.ref.Equal(ref), "got %v", ref)
		})
	}

	for _, bad := range []string{"days", "fortnights since 2002-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestEncodeTimes(t *testing.T) {
	got := EncodeTimes([]time.Time{
		time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []float64{1, 0.5}, got)
}

func TestCompare(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.nc")
	lwe, soil := fixtureValues()
	createGRACENC(t, path, lwe, soil)

	a, err := ReadDataset(path, "a", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)
	b, err := ReadDataset(path, "b", []string{"lwe_thickness"}, DefaultConfig())
	require.NoError(t, err)

	c, err := Compare(a, b, "lwe_thickness")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Steps)
	assert.Equal(t, 6, c.Cells)
	assert.True(t, c.Within(0, 0), "missing values on both sides are equal")

	b.Fields[0].Values[1][0][0] = 7.5
	c, err = Compare(a, b, "lwe_thickness")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.MaxAbs, 1e-12)
	assert.InDelta(t, 1.0/14.5, c.MaxRel, 1e-12)

	_, err = Compare(a, b, "SoilMoist")
	assert.Error(t, err)

	b.Grid = domain.Grid{Lons: []float64{0, 10}, Lats: []float64{0, 10}}
	_, err = Compare(a, b, "lwe_thickness")
	assert.Error(t, err)
}
