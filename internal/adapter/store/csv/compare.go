package csv

import (
	"fmt"

	"go.ngs.io/storage-anomaly/internal/domain"
)

// Comparison summarizes the differences between two tables.
type Comparison struct {
	Rows    int
	Columns int
	domain.Difference
}

// Compare measures the largest absolute and relative differences between
// two tables, which must share shape, column names and dates.
func Compare(a, b *Table) (Comparison, error) {
	if len(a.Dates) != len(b.Dates) {
		return Comparison{}, fmt.Errorf("the number of rows are different: %d <> %d", len(a.Dates), len(b.Dates))
	}
	if len(a.Columns) != len(b.Columns) {
		return Comparison{}, fmt.Errorf("the number of columns are different: %d <> %d", len(a.Columns), len(b.Columns))
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return Comparison{}, fmt.Errorf("column %d differs: %s <> %s", i, a.Columns[i], b.Columns[i])
		}
	}
	for i := range a.Dates {
		if !a.Dates[i].Equal(b.Dates[i]) {
			return Comparison{}, fmt.Errorf("date on row %d differs: %s <> %s",
				i+1, a.Dates[i].Format(DateLayout), b.Dates[i].Format(DateLayout))
		}
	}

	c := Comparison{Rows: len(a.Dates), Columns: len(a.Columns)}
	for i := range a.Values {
		for row, x := range a.Values[i] {
			c.Add(x, b.Values[i][row])
		}
	}
	return c, nil
}
