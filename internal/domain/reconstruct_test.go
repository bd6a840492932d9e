package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graceSeries(start time.Time, values []float64) Series {
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = start.AddDate(0, i, 0)
	}
	return Series{Name: "lwe_thickness", Unit: "cm", Times: times, Values: values}
}

func TestReconstruct_ZeroTrendZeroSeasonRoundTrip(t *testing.T) {
	year := []float64{3, -1, 2, 0, -4, 1, 5, -2, -3, 1, 0, -2}
	values := append([]float64(nil), year...)
	for _, v := range year {
		values = append(values, -v)
	}
	s := graceSeries(time.Date(2003, 1, 16, 0, 0, 0, 0, time.UTC), values)

	r, err := Reconstruct(s)
	require.NoError(t, err)
	require.Len(t, r.Reconstructed, len(values))

	assert.InDelta(t, 0, r.Slope, 1e-12)
	assert.InDelta(t, 0, r.Intercept, 1e-12)
	for k, c := range r.Climatology {
		assert.InDelta(t, 0, c, 1e-12, "climatology month %d", k+1)
	}

	want := make([]float64, len(values))
	for i, v := range values {
		want[i] = v - r.Trend[i]
	}
	if diff := cmp.Diff(want, r.Reconstructed, approx); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstruct_MonthsAndClimatology(t *testing.T) {
	// Pure seasonal signal repeated over three years plus a linear trend.
	season := []float64{5, 4, 2, 0, -2, -4, -5, -4, -2, 0, 2, 4}
	var values []float64
	for y := 0; y < 3; y++ {
		for m, v := range season {
			values = append(values, v+0.1*float64(12*y+m))
		}
	}
	s := graceSeries(time.Date(2010, 1, 10, 0, 0, 0, 0, time.UTC), values)
	r, err := Reconstruct(s)
	require.NoError(t, err)

	assert.Equal(t, Month{2010, time.January}, r.Months[0])
	assert.Equal(t, Month{2012, time.December}, r.Months[len(r.Months)-1])
	assert.Empty(t, r.UndefinedClimatology())

	// The output keeps the input signal where it is present.
	if diff := cmp.Diff(values, r.Reconstructed, approx); diff != "" {
		t.Errorf("reconstruction changed present values (-want +got):\n%s", diff)
	}
}

func TestReconstruct_SingleGapForwardFilled(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = math.Sin(float64(i)) * 10
	}
	values[5] = math.NaN()
	s := graceSeries(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), values)

	r, err := Reconstruct(s)
	require.NoError(t, err)
	assert.Equal(t, values[4], r.Monthly[5])
	assert.InDelta(t, values[4], r.Reconstructed[5], 1e-9)
}

func TestReconstruct_AbsentMonthsBecomeGaps(t *testing.T) {
	start := time.Date(2002, 4, 18, 0, 0, 0, 0, time.UTC)
	var s Series
	s.Name = "lwe_thickness"
	for i := 0; i < 30; i++ {
		if i >= 10 && i < 15 {
			continue
		}
		s.Times = append(s.Times, start.AddDate(0, i, 0))
		s.Values = append(s.Values, float64(i%12))
	}
	r, err := Reconstruct(s)
	require.NoError(t, err)
	require.Len(t, r.Months, 30)
	for i := 10; i < 15; i++ {
		assert.True(t, IsMissing(r.Monthly[i]), "month %d should be missing", i)
		assert.True(t, IsMissing(r.Reconstructed[i]), "gap longer than 3 months must stay missing at %d", i)
	}
}

func TestReconstruct_MultipleSamplesInOneMonthAveraged(t *testing.T) {
	s := Series{
		Name: "lwe_thickness",
		Times: []time.Time{
			time.Date(2003, 1, 3, 0, 0, 0, 0, time.UTC),
			time.Date(2003, 1, 28, 0, 0, 0, 0, time.UTC),
			time.Date(2003, 2, 14, 0, 0, 0, 0, time.UTC),
			time.Date(2003, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		Values: []float64{1, 3, 4, 6},
	}
	r, err := Reconstruct(s)
	require.NoError(t, err)
	require.Len(t, r.Monthly, 3)
	assert.InDelta(t, 2, r.Monthly[0], 1e-12)
}

func TestReconstruct_TooFewSamples(t *testing.T) {
	s := graceSeries(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), []float64{1, math.NaN(), math.NaN()})
	_, err := Reconstruct(s)
	assert.ErrorIs(t, err, ErrTemporalReconstruction)
}

func TestReconstruct_SamplesInOneMonthAreTooFew(t *testing.T) {
	s := Series{
		Name: "lwe_thickness",
		Times: []time.Time{
			time.Date(2004, 1, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2004, 1, 25, 0, 0, 0, 0, time.UTC),
		},
		Values: []float64{1, 3},
	}
	r, err := Reconstruct(s)
	assert.ErrorIs(t, err, ErrTemporalReconstruction)
	assert.Nil(t, r)
}

func TestReconstruct_UndefinedClimatologyPropagates(t *testing.T) {
	s := graceSeries(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), []float64{1, 2, 3, 4, 5, 6})
	r, err := Reconstruct(s)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12}, r.UndefinedClimatology())
	assert.True(t, IsMissing(r.Climatology[6]))
}

func TestFillGaps_CubicExactInsideShortGaps(t *testing.T) {
	p := func(x float64) float64 { return 0.5*x*x*x - 2*x*x + x + 3 }
	values := make([]float64, 14)
	for i := range values {
		values[i] = p(float64(i))
	}
	values[4], values[5], values[6] = math.NaN(), math.NaN(), math.NaN()

	got := fillGaps(values, maxSplineGap)
	for i := 4; i <= 6; i++ {
		assert.InDelta(t, p(float64(i)), got[i], 1e-6, "index %d", i)
	}
}

func TestFillGaps_LeavesLongAndEdgeGaps(t *testing.T) {
	nan := math.NaN()
	values := []float64{nan, 1, 2, 3, nan, nan, nan, nan, 8, 9, 10, nan}
	got := fillGaps(values, maxSplineGap)
	for _, i := range []int{0, 4, 5, 6, 7, 11} {
		assert.True(t, IsMissing(got[i]), "index %d should stay missing", i)
	}
}

func TestFillGaps_TooFewPoints(t *testing.T) {
	nan := math.NaN()
	values := []float64{1, nan, nan, 4, 5}
	got := fillGaps(values, maxSplineGap)
	assert.True(t, IsMissing(got[1]))
}

func TestForwardFillSingle(t *testing.T) {
	nan := math.NaN()
	got := forwardFillSingle([]float64{1, nan, 3, nan, nan, 6, nan})
	if diff := cmp.Diff([]float64{1, 1, 3, nan, nan, 6, 6}, got, approx); diff != "" {
		t.Errorf("forward fill mismatch (-want +got):\n%s", diff)
	}
}
