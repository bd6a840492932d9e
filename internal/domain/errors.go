package domain

import (
	"errors"
	"fmt"
)

// Error classes shared by every stage of the pipeline. Stages wrap one of
// these with fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	// ErrInputValidation marks bad CRS, wrong grid shape or an unknown unit.
	ErrInputValidation = errors.New("input validation error")

	// ErrSpatialMatch marks a region with no matched cells or a zero-area aggregation.
	ErrSpatialMatch = errors.New("spatial match error")

	// ErrTemporalReconstruction marks a series that cannot be reconstructed.
	ErrTemporalReconstruction = errors.New("temporal reconstruction error")

	// ErrAlignment marks series whose monthly indices disagree during combination.
	ErrAlignment = errors.New("alignment error")
)

// SeriesError isolates a failure to one source/region pair so a batch can
// keep going and report it alongside the successful results.
type SeriesError struct {
	Region string
	Source string
	Err    error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("region %s, source %s: %v", e.Region, e.Source, e.Err)
}

func (e *SeriesError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort a whole run rather than a single series.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInputValidation) ||
		errors.Is(err, ErrSpatialMatch) ||
		errors.Is(err, ErrAlignment)
}
