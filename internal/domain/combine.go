package domain

import (
	"fmt"
	"strings"
)

// Model is a land-surface model tag. The set is closed.
type Model string

// Supported land-surface models.
const (
	ModelCLM  Model = "CLM"
	ModelMOS  Model = "MOS"
	ModelNOAH Model = "NOAH"
	ModelVIC  Model = "VIC"
)

// Models returns every supported model in a fixed order.
func Models() []Model {
	return []Model{ModelCLM, ModelMOS, ModelNOAH, ModelVIC}
}

// ParseModel validates a model tag. Unknown tags are rejected.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Models() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown model %q (supported: CLM, MOS, NOAH, VIC)", ErrInputValidation, s)
}

// Component is a water-balance storage component.
type Component string

// Storage components subtracted from total water storage.
const (
	ComponentSoilMoisture Component = "SMTa"
	ComponentCanopy       Component = "CANa"
	ComponentSnow         Component = "SWEa"
)

// Components returns every component in output column order.
func Components() []Component {
	return []Component{ComponentSoilMoisture, ComponentCanopy, ComponentSnow}
}

// VariableName returns the native variable holding c in model m's files.
func (c Component) VariableName(m Model) string {
	switch c {
	case ComponentSoilMoisture:
		return "SoilMoist"
	case ComponentCanopy:
		if m == ModelVIC {
			return "Canint"
		}
		return "Canopint"
	case ComponentSnow:
		return "SWE"
	default:
		return string(c)
	}
}

// Output column names of a combined result.
const (
	ColumnResidual = "GWa"
	ColumnTotal    = "TWSa"
)

// CombinedResult is the final monthly series of a region.
type CombinedResult struct {
	Months     []Month
	Total      []float64
	Components map[Component][]float64
	Residual   []float64
}

// Columns returns the result as named series in output order.
func (r *CombinedResult) Columns() []Series {
	cols := []Series{
		MonthlySeries(ColumnResidual, "cm", r.Months, r.Residual),
		MonthlySeries(ColumnTotal, "cm", r.Months, r.Total),
	}
	for _, c := range Components() {
		if v, ok := r.Components[c]; ok {
			cols = append(cols, MonthlySeries(string(c), "cm", r.Months, v))
		}
	}
	return cols
}

// Truncate cuts every series to the common overlapping monthly window.
// Series are not re-aligned: any month mismatch inside the window is an
// alignment error.
func Truncate(series ...Series) ([]Series, error) {
	if len(series) == 0 {
		return nil, nil
	}
	var first, last Month
	for i, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			return nil, fmt.Errorf("%w: series %s is empty", ErrAlignment, s.Name)
		}
		f := MonthOf(s.Times[0])
		l := MonthOf(s.Times[s.Len()-1])
		if i == 0 || first.Before(f) {
			first = f
		}
		if i == 0 || l.Before(last) {
			last = l
		}
	}
	if last.Before(first) {
		return nil, fmt.Errorf("%w: series share no common months", ErrAlignment)
	}

	out := make([]Series, len(series))
	var ref []Month
	for i, s := range series {
		cut := Series{Name: s.Name, Unit: s.Unit}
		for k, t := range s.Times {
			m := MonthOf(t)
			if m.Before(first) || last.Before(m) {
				continue
			}
			cut.Times = append(cut.Times, t)
			cut.Values = append(cut.Values, s.Values[k])
		}
		months := cut.Months()
		if i == 0 {
			ref = months
		} else if err := sameMonths(ref, months); err != nil {
			return nil, fmt.Errorf("%w: series %s vs %s: %v", ErrAlignment, series[0].Name, s.Name, err)
		}
		out[i] = cut
	}
	return out, nil
}

func sameMonths(a, b []Month) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d months vs %d months", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("index %d is %s vs %s", i, a[i], b[i])
		}
	}
	return nil
}

// CombineComponent averages aligned model series month by month, skipping
// missing values. A month with no model value stays missing.
func CombineComponent(models []Series) ([]float64, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no model series to combine", ErrInputValidation)
	}
	n := models[0].Len()
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		var sum float64
		var count int
		for _, s := range models {
			if s.Len() != n {
				return nil, fmt.Errorf("%w: series %s has %d steps, expected %d", ErrAlignment, s.Name, s.Len(), n)
			}
			if IsMissing(s.Values[t]) {
				continue
			}
			sum += s.Values[t]
			count++
		}
		if count == 0 {
			out[t] = Missing
			continue
		}
		out[t] = sum / float64(count)
	}
	return out, nil
}

// Combine truncates the total and every component model series to their
// common window, averages each component across models and computes
//
//	residual = total − Σ components
func Combine(total Series, components map[Component][]Series) (*CombinedResult, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: no components to combine", ErrInputValidation)
	}

	all := []Series{total}
	type span struct {
		c          Component
		start, end int
	}
	var spans []span
	for _, c := range Components() {
		models, ok := components[c]
		if !ok {
			continue
		}
		if len(models) == 0 {
			return nil, fmt.Errorf("%w: component %s has no model series", ErrInputValidation, c)
		}
		spans = append(spans, span{c: c, start: len(all), end: len(all) + len(models)})
		all = append(all, models...)
	}
	for c := range components {
		known := false
		for _, k := range Components() {
			known = known || k == c
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown component %q", ErrInputValidation, c)
		}
	}

	cut, err := Truncate(all...)
	if err != nil {
		return nil, err
	}

	res := &CombinedResult{
		Months:     cut[0].Months(),
		Total:      cut[0].Values,
		Components: make(map[Component][]float64, len(spans)),
	}
	for _, sp := range spans {
		v, err := CombineComponent(cut[sp.start:sp.end])
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", sp.c, err)
		}
		res.Components[sp.c] = v
	}

	res.Residual = make([]float64, len(res.Months))
	for t := range res.Residual {
		r := res.Total[t]
		for _, sp := range spans {
			r -= res.Components[sp.c][t]
		}
		// NaN propagates through the subtraction.
		res.Residual[t] = r
	}
	return res, nil
}
