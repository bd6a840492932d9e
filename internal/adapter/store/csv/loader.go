// Package csv reads and writes monthly anomaly tables as CSV files.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// DateLayout is the textual date format of the first column.
const DateLayout = "2006-01-02"

// DateColumn is the header of the first column.
const DateColumn = "date"

// Table is a dated table of float columns. Values[col][row]; NaN is missing.
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	for i, c := range t.Columns {
		if c == name {
			return t.Values[i], true
		}
	}
	return nil, false
}

// Series returns every column as a named series.
func (t *Table) Series(unit string) []domain.Series {
	out := make([]domain.Series, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = domain.Series{Name: c, Unit: unit, Times: t.Dates, Values: t.Values[i]}
	}
	return out
}

// LoadTable reads a CSV file written by WriteTable.
//
//nolint:gosec // G304: path comes from the command line or run configuration.
func LoadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	t, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadTable parses a table with a leading date column. Empty fields and
// "NaN" are read as missing.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// Read header.
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != DateColumn {
		return nil, fmt.Errorf("%w: invalid CSV header: expected %q followed by value columns, got %v",
			domain.ErrInputValidation, DateColumn, header)
	}

	t := &Table{
		Columns: make([]string, len(header)-1),
		Values:  make([][]float64, len(header)-1),
	}
	for i, h := range header[1:] {
		t.Columns[i] = strings.TrimSpace(h)
	}

	// Read data rows.
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d",
				domain.ErrInputValidation, row, len(record), len(header))
		}

		date, err := time.Parse(DateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date on row %d: %v", domain.ErrInputValidation, row, err)
		}
		t.Dates = append(t.Dates, date)

		for i, field := range record[1:] {
			v, err := parseValue(field)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid %s value on row %d: %v",
					domain.ErrInputValidation, t.Columns[i], row, err)
			}
			t.Values[i] = append(t.Values[i], v)
		}
	}

	return t, nil
}

func parseValue(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
