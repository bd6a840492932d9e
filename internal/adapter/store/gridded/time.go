package gridded

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// OutputTimeUnits is the CF time unit written to gridded outputs.
const OutputTimeUnits = "days since 1970-01-01 00:00:00"

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits splits a CF unit string such as "days since 2002-01-01"
// into a step duration and a reference instant.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h":
		step = time.Hour
	case "minutes", "minute", "min":
		step = time.Minute
	case "seconds", "second", "s":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time step %q", parts[0])
	}

	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, " UTC")
	// Drop fractional seconds ("00:00:00.0").
	if i := strings.LastIndex(ref, "."); i > strings.LastIndex(ref, ":") && strings.Contains(ref, ":") {
		ref = ref[:i]
	}
	for _, layout := range referenceLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported reference time %q", parts[1])
}

// DecodeTimes converts CF offsets into UTC instants.
func DecodeTimes(offsets []float64, units string) ([]time.Time, error) {
	step, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(offsets))
	for i, off := range offsets {
		if math.IsNaN(off) {
			return nil, fmt.Errorf("time offset %d is missing", i)
		}
		times[i] = ref.Add(time.Duration(math.Round(off * float64(step))))
	}
	return times, nil
}

// EncodeTimes converts instants into offsets of OutputTimeUnits.
func EncodeTimes(times []time.Time) []float64 {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(epoch).Hours() / 24
	}
	return out
}
