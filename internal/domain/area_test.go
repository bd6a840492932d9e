package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCellArea_Example(t *testing.T) {
	want := EarthRadiusM * EarthRadiusM * Deg2Rad(10) * Deg2Rad(10) * math.Cos(Deg2Rad(10))
	got := CellArea(10, 10, 10)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("CellArea(10, 10, 10) = %.6f, want %.6f", got, want)
	}
}

func TestCellArea_DecreasesWithAbsLatitude(t *testing.T) {
	prev := CellArea(0, 0.25, 0.25)
	for lat := 0.25; lat <= 90; lat += 0.25 {
		north := CellArea(lat, 0.25, 0.25)
		south := CellArea(-lat, 0.25, 0.25)
		if north >= prev {
			t.Fatalf("area at %.2f (%g) not smaller than at %.2f (%g)", lat, north, lat-0.25, prev)
		}
		if math.Abs(north-south) > 1e-9*prev {
			t.Fatalf("area not symmetric at ±%.2f: %g vs %g", lat, north, south)
		}
		prev = north
	}
}

func TestCellArea_ZeroAtPoles(t *testing.T) {
	for _, lat := range []float64{90, -90} {
		if got := CellArea(lat, 1, 1); got != 0 {
			t.Errorf("CellArea(%v) = %g, want 0", lat, got)
		}
	}
}

func TestAreaTable(t *testing.T) {
	g, err := NewGrid([]float64{-10, 0, 10}, []float64{0, 10, 20})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	table := NewAreaTable(g)
	for j, lat := range g.Lats {
		if got, want := table.At(j), CellArea(lat, 10, 10); got != want {
			t.Errorf("row %d: got %g, want %g", j, got, want)
		}
	}
}

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name string
		lons []float64
		lats []float64
		ok   bool
	}{
		{"regular", []float64{0.5, 1.5, 2.5}, []float64{-1, 0, 1}, true},
		{"0-360", []float64{350, 355, 360}, []float64{10, 20}, true},
		{"descending", []float64{2, 1, 0}, []float64{0, 1}, false},
		{"irregular", []float64{0, 1, 3}, []float64{0, 1}, false},
		{"too short", []float64{0}, []float64{0, 1}, false},
		{"bad latitude", []float64{0, 1}, []float64{90, 95}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.lons, tt.lats)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInputValidation) {
					t.Fatalf("expected ErrInputValidation, got %v", err)
				}
			}
		})
	}
}

func TestNormalizeLon180(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{180.5, -179.5},
		{359.75, -0.25},
		{-45, -45},
	}
	for _, tt := range tests {
		if got := NormalizeLon180(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NormalizeLon180(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUnitFactor(t *testing.T) {
	tests := map[string]float64{
		"mm": 1000, "kg/m2": 1000, "kg/m^2": 1000, "kg/m²": 1000,
		"cm": 100, "dm": 10, "m": 1, "km": 0.001, " cm ": 100,
	}
	for unit, want := range tests {
		got, err := UnitFactor(unit)
		if err != nil {
			t.Fatalf("UnitFactor(%q): %v", unit, err)
		}
		if got != want {
			t.Errorf("UnitFactor(%q) = %v, want %v", unit, got, want)
		}
	}
	if _, err := UnitFactor("inches"); !errors.Is(err, ErrInputValidation) {
		t.Errorf("expected ErrInputValidation for unknown unit, got %v", err)
	}
}
