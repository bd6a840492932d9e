package csv

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/storage-anomaly/internal/domain"
)

func months(n int) []domain.Month {
	return domain.MonthRange(domain.Month{Year: 2002, Month: time.April}, domain.Month{Year: 2002, Month: time.April}.Add(n-1))
}

func TestWriteTable_Format(t *testing.T) {
	m := months(3)
	tbl, err := FromSeries(
		domain.MonthlySeries("GWa", "cm", m, []float64{1.5, math.NaN(), -2}),
		domain.MonthlySeries("TWSa", "cm", m, []float64{0.25, 3, 4}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tbl))
	want := "date,GWa,TWSa\n" +
		"2002-04-01,1.5,0.25\n" +
		"2002-05-01,,3\n" +
		"2002-06-01,-2,4\n"
	assert.Equal(t, want, buf.String())
}

func TestTable_RoundTripThroughFile(t *testing.T) {
	m := months(4)
	in, err := FromSeries(
		domain.MonthlySeries("GRC", "cm", m, []float64{-1.234567890123, 0, math.NaN(), 7e-5}),
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "timeseries_basin_GRC.csv")
	require.NoError(t, SaveTable(path, in))

	out, err := LoadTable(path)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	c, err := Compare(in, out)
	require.NoError(t, err)
	assert.True(t, c.Within(0, 0))

	col, ok := out.Column("GRC")
	require.True(t, ok)
	assert.Len(t, col, 4)
	series := out.Series("cm")
	require.Len(t, series, 1)
	assert.Equal(t, "GRC", series[0].Name)
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing date column", "time,GRC\n2002-04-01,1\n"},
		{"no value columns", "date\n2002-04-01\n"},
		{"bad date", "date,GRC\n04/01/2002,1\n"},
		{"bad value", "date,GRC\n2002-04-01,abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, domain.ErrInputValidation)
		})
	}

	_, err := ReadTable(strings.NewReader(""))
	assert.Error(t, err)
}

func TestFromSeries_Misaligned(t *testing.T) {
	a := domain.MonthlySeries("a", "cm", months(3), []float64{1, 2, 3})
	b := domain.MonthlySeries("b", "cm", months(2), []float64{1, 2})
	_, err := FromSeries(a, b)
	assert.ErrorIs(t, err, domain.ErrAlignment)

	shifted := domain.MonthlySeries("c", "cm", domain.MonthRange(domain.Month{Year: 2003, Month: 1}, domain.Month{Year: 2003, Month: 3}), []float64{1, 2, 3})
	_, err = FromSeries(a, shifted)
	assert.ErrorIs(t, err, domain.ErrAlignment)

	_, err = FromSeries()
	assert.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestCompare(t *testing.T) {
	m := months(2)
	a, err := FromSeries(domain.MonthlySeries("x", "cm", m, []float64{1, 10}))
	require.NoError(t, err)
	b, err := FromSeries(domain.MonthlySeries("x", "cm", m, []float64{1.1, 10}))
	require.NoError(t, err)

	c, err := Compare(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, c.MaxAbs, 1e-12)
	assert.InDelta(t, 0.2/2.1, c.MaxRel, 1e-12)
	assert.True(t, c.Within(0.1, 0.11))
	assert.False(t, c.Within(0.01, 0.11))
	assert.False(t, c.Within(0.1, 0.01))

	missing, err := FromSeries(domain.MonthlySeries("x", "cm", m, []float64{math.NaN(), 10}))
	require.NoError(t, err)
	c, err = Compare(a, missing)
	require.NoError(t, err)
	assert.True(t, math.IsInf(c.MaxAbs, 1))

	other, err := FromSeries(domain.MonthlySeries("y", "cm", m, []float64{1, 10}))
	require.NoError(t, err)
	_, err = Compare(a, other)
	assert.Error(t, err)

	short, err := FromSeries(domain.MonthlySeries("x", "cm", months(1), []float64{1}))
	require.NoError(t, err)
	_, err = Compare(a, short)
	assert.Error(t, err)
}
