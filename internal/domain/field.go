package domain

import (
	"fmt"
	"time"
)

// Field is one gridded variable of a dataset held fully in memory.
type Field struct {
	Name string
	Unit string

	// Values[t][lat][lon]. Fill values are already converted to NaN.
	Values [][][]float64

	// Scale is an optional [lat][lon] multiplier. NaN marks a masked cell.
	Scale [][]float64

	// FillValue is the declared fill value, reused by gridded outputs.
	FillValue float64
	HasFill   bool

	// Attrs holds copied variable metadata (standard_name, long_name, ...).
	Attrs map[string]string
}

// Dataset is a named collection of fields sharing one grid and time axis.
type Dataset struct {
	Name   string
	Grid   Grid
	Times  []time.Time
	Fields []*Field

	// Attrs holds copied global metadata.
	Attrs map[string]string
}

// Field returns the field with the given name.
func (d *Dataset) Field(name string) (*Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FieldNames lists the dataset's field names in order.
func (d *Dataset) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks the grid, every field's shape and every unit.
func (d *Dataset) Validate() error {
	if err := d.Grid.Validate(); err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	for i := 1; i < len(d.Times); i++ {
		if !d.Times[i].After(d.Times[i-1]) {
			return fmt.Errorf("%w: dataset %s time axis must be strictly increasing", ErrInputValidation, d.Name)
		}
	}
	nLat, nLon := len(d.Grid.Lats), len(d.Grid.Lons)
	for _, f := range d.Fields {
		if _, err := UnitFactor(f.Unit); err != nil {
			return fmt.Errorf("dataset %s variable %s: %w", d.Name, f.Name, err)
		}
		if len(f.Values) != len(d.Times) {
			return fmt.Errorf("%w: variable %s has %d time steps, expected %d",
				ErrInputValidation, f.Name, len(f.Values), len(d.Times))
		}
		for t, slab := range f.Values {
			if err := checkShape(slab, nLat, nLon); err != nil {
				return fmt.Errorf("%w: variable %s step %d: %v", ErrInputValidation, f.Name, t, err)
			}
		}
		if f.Scale != nil {
			if err := checkShape(f.Scale, nLat, nLon); err != nil {
				return fmt.Errorf("%w: scale grid for %s: %v", ErrInputValidation, f.Name, err)
			}
		}
	}
	return nil
}

func checkShape(v [][]float64, nLat, nLon int) error {
	if len(v) != nLat {
		return fmt.Errorf("has %d latitude rows, expected %d", len(v), nLat)
	}
	for j, row := range v {
		if len(row) != nLon {
			return fmt.Errorf("row %d has %d values, expected %d", j, len(row), nLon)
		}
	}
	return nil
}
