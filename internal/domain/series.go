package domain

import (
	"fmt"
	"math"
	"time"
)

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t (in UTC).
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// Ordinal returns a month count suitable for differences and ordering.
func (m Month) Ordinal() int {
	return m.Year*12 + int(m.Month) - 1
}

// monthFromOrdinal is the inverse of Ordinal.
func monthFromOrdinal(n int) Month {
	y := n / 12
	mo := n % 12
	if mo < 0 {
		mo += 12
		y--
	}
	return Month{Year: y, Month: time.Month(mo + 1)}
}

// Add returns the month n months after m.
func (m Month) Add(n int) Month {
	return monthFromOrdinal(m.Ordinal() + n)
}

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool {
	return m.Ordinal() < o.Ordinal()
}

// Time returns the first instant of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MonthRange returns every month from first to last inclusive.
func MonthRange(first, last Month) []Month {
	n := last.Ordinal() - first.Ordinal() + 1
	if n <= 0 {
		return nil
	}
	months := make([]Month, n)
	for i := range months {
		months[i] = first.Add(i)
	}
	return months
}

// Missing is the explicit missing marker carried by series values.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Series is an ordered scalar time series. Missing samples are NaN.
type Series struct {
	Name   string
	Unit   string
	Times  []time.Time
	Values []float64
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Times)
}

// Valid counts the non-missing samples.
func (s Series) Valid() int {
	n := 0
	for _, v := range s.Values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// Months returns the calendar month of every sample.
func (s Series) Months() []Month {
	months := make([]Month, len(s.Times))
	for i, t := range s.Times {
		months[i] = MonthOf(t)
	}
	return months
}

// MonthlySeries builds a Series stamped at the first day of each month.
func MonthlySeries(name, unit string, months []Month, values []float64) Series {
	times := make([]time.Time, len(months))
	for i, m := range months {
		times[i] = m.Time()
	}
	return Series{Name: name, Unit: unit, Times: times, Values: values}
}

// Validate checks that times and values line up and times are increasing.
func (s Series) Validate() error {
	if len(s.Times) != len(s.Values) {
		return fmt.Errorf("%w: series %s has %d times but %d values",
			ErrInputValidation, s.Name, len(s.Times), len(s.Values))
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("%w: series %s times must be strictly increasing at index %d",
				ErrInputValidation, s.Name, i)
		}
	}
	return nil
}
