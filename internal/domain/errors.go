package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks an upstream source that could not supply rows
	// at all (retrieval failed, file absent). Extractors wrap it.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientData marks a dataset-level outcome with no defined result:
	// no overlapping dates, an empty period, or no lag with a defined coefficient.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidArgument marks a caller error such as an unknown field or a
	// non-positive maximum lag.
	ErrInvalidArgument = errors.New("invalid argument")
)

// FormatError reports a raw table from which no observation could be parsed,
// usually a wrong schema or encoding assumption.
type FormatError struct {
	Source  string
	Rows    int   // data rows examined
	Dropped int   // rows rejected for an unparsable timestamp
	Err     error // first row-level failure, if any
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("format error in %q: %d of %d rows unparsable", e.Source, e.Dropped, e.Rows)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
