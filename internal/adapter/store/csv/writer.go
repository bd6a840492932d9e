package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// FromSeries builds a table from series sharing one time axis.
func FromSeries(series ...domain.Series) (*Table, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no series to tabulate", domain.ErrInputValidation)
	}
	dates := series[0].Times
	t := &Table{Dates: dates}
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if len(s.Times) != len(dates) {
			return nil, fmt.Errorf("%w: series %s has %d samples, expected %d",
				domain.ErrAlignment, s.Name, len(s.Times), len(dates))
		}
		for i := range dates {
			if !s.Times[i].Equal(dates[i]) {
				return nil, fmt.Errorf("%w: series %s differs in time at index %d",
					domain.ErrAlignment, s.Name, i)
			}
		}
		t.Columns = append(t.Columns, s.Name)
		t.Values = append(t.Values, s.Values)
	}
	return t, nil
}

// WriteTable writes t to w. Missing values are written as empty fields.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{DateColumn}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for row, date := range t.Dates {
		record[0] = date.UTC().Format(DateLayout)
		for i, col := range t.Values {
			if row >= len(col) {
				return fmt.Errorf("%w: column %s has %d values, expected %d",
					domain.ErrInputValidation, t.Columns[i], len(col), len(t.Dates))
			}
			record[i+1] = formatValue(col[row])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveTable writes t to path, creating parent directories.
func SaveTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	//nolint:gosec // G304: path comes from the run configuration.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file %s: %w", path, err)
	}
	if err := WriteTable(file, t); err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
