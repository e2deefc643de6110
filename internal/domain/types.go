package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// RawTable is a tabular source as split by an extractor. Lines holds every
// line of the source, preamble and header included, as a slice of fields.
type RawTable struct {
	Source string
	Lines  [][]string
}

// Observation is one validated reading. Absent marks a row whose timestamp
// parsed but whose value did not; it is never treated as zero.
type Observation struct {
	Time   time.Time
	Value  float64
	Absent bool
}

// Aggregation is the rule used to reduce a day's observations to one value.
type Aggregation string

const (
	AggregateSum  Aggregation = "sum"  // accumulating quantities such as rainfall
	AggregateMean Aggregation = "mean" // state quantities such as river level
)

// FillPolicy is the rule applied during alignment to a date on which a series
// has no value.
type FillPolicy string

const (
	FillZero    FillPolicy = "zero"
	FillForward FillPolicy = "forward"
	FillDrop    FillPolicy = "drop"
)

// ParseFillPolicy validates a textual fill policy.
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch p := FillPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FillZero, FillForward, FillDrop:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown fill policy %q", ErrInvalidArgument, s)
	}
}

// FieldPolicy configures one series during alignment. Fields are required
// unless Optional is set; a row missing a required field after filling is removed.
type FieldPolicy struct {
	Fill     FillPolicy
	Optional bool
}

// DailyPoint is one aggregated calendar day. Count is the number of
// non-absent observations that contributed to Value.
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Count int       `json:"count"`
}

// DailySeries holds strictly increasing calendar dates with one value each.
type DailySeries struct {
	Name        string       `json:"name"`
	Aggregation Aggregation  `json:"aggregation"`
	Points      []DailyPoint `json:"points"`
}

// Len returns the number of days in the series.
func (s DailySeries) Len() int { return len(s.Points) }

// Cell is one field value on one aligned date.
type Cell struct {
	Value  float64 `json:"value"`
	Absent bool    `json:"absent,omitempty"`
	Filled bool    `json:"filled,omitempty"` // produced by the field's fill policy
}

// AlignedRow is one calendar date of an AlignedDataset. Cells is parallel to
// AlignedDataset.Fields.
type AlignedRow struct {
	Date  time.Time `json:"date"`
	Cells []Cell    `json:"cells"`
}

// AlignedDataset is a set of daily series joined on their calendar dates.
type AlignedDataset struct {
	Fields []string     `json:"fields"`
	Rows   []AlignedRow `json:"rows"`
}

// Len returns the number of dates in the dataset.
func (d AlignedDataset) Len() int { return len(d.Rows) }

// FieldIndex returns the column position of a field.
func (d AlignedDataset) FieldIndex(name string) (int, bool) {
	i := slices.Index(d.Fields, name)
	return i, i >= 0
}

// Column returns a copy of one field's cells in date order.
func (d AlignedDataset) Column(name string) ([]Cell, error) {
	idx, ok := d.FieldIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidArgument, name)
	}
	out := make([]Cell, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row.Cells[idx]
	}
	return out, nil
}

// Window returns a copy of the rows whose dates fall within [from, to].
// Both bounds are compared as calendar dates; a zero bound leaves that side open.
func (d AlignedDataset) Window(from, to time.Time) AlignedDataset {
	r := DateRange{From: from, To: to}
	out := AlignedDataset{Fields: slices.Clone(d.Fields)}
	for _, row := range d.Rows {
		if !r.Contains(row.Date) {
			continue
		}
		out.Rows = append(out.Rows, AlignedRow{Date: row.Date, Cells: slices.Clone(row.Cells)})
	}
	return out
}

// CalendarDate truncates t to its calendar date in t's own location and
// returns that date at midnight UTC, so dates compare by value.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar dates. A zero From or To
// leaves the range unbounded on that side.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t's calendar date falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := CalendarDate(t)
	if !r.From.IsZero() && d.Before(CalendarDate(r.From)) {
		return false
	}
	return r.To.IsZero() || !d.After(CalendarDate(r.To))
}

func (r DateRange) String() string {
	return r.From.Format(time.DateOnly) + ":" + r.To.Format(time.DateOnly)
}
