package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ReportingFactor converts meter based anomalies to centimeters.
const ReportingFactor = 100.0

// unitFactors maps native units to the divisor that yields meters.
var unitFactors = map[string]float64{
	"mm":     1000,
	"kg/m2":  1000,
	"kg/m^2": 1000,
	"kg/m²":  1000,
	"cm":     100,
	"dm":     10,
	"m":      1,
	"km":     0.001,
}

// UnitFactor returns the divisor converting unit to meters.
func UnitFactor(unit string) (float64, error) {
	f, ok := unitFactors[strings.TrimSpace(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q (supported: %s)",
			ErrInputValidation, unit, strings.Join(SupportedUnits(), ", "))
	}
	return f, nil
}

// SupportedUnits lists the unit strings accepted by UnitFactor.
func SupportedUnits() []string {
	units := make([]string, 0, len(unitFactors))
	for u := range unitFactors {
		units = append(units, u)
	}
	sort.Strings(units)
	return units
}
