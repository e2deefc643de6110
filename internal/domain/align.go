package domain

import (
	"fmt"
	"time"
)

// Align joins daily series on the union of their dates and applies each
// field's gap policy. Fields appear in the order of series.
//
// A cell with no point for its date is filled according to its policy: ZERO
// yields 0, FORWARD carries the most recent earlier value (absent when there
// is none), DROP leaves it absent. Rows in which any non-optional field is
// still absent are removed.
func Align(series []DailySeries, policies map[string]FieldPolicy) (AlignedDataset, error) {
	if len(series) == 0 {
		return AlignedDataset{}, fmt.Errorf("%w: no series to align", ErrInvalidArgument)
	}
	fields := make([]string, len(series))
	seen := make(map[string]bool, len(series))
	for i, s := range series {
		if s.Name == "" {
			return AlignedDataset{}, fmt.Errorf("%w: series %d has no name", ErrInvalidArgument, i)
		}
		if seen[s.Name] {
			return AlignedDataset{}, fmt.Errorf("%w: duplicate series %q", ErrInvalidArgument, s.Name)
		}
		seen[s.Name] = true
		if _, ok := policies[s.Name]; !ok {
			return AlignedDataset{}, fmt.Errorf("%w: no fill policy for %q", ErrInvalidArgument, s.Name)
		}
		for j := 1; j < len(s.Points); j++ {
			if !s.Points[j].Date.After(s.Points[j-1].Date) {
				return AlignedDataset{}, fmt.Errorf("%w: series %q dates not strictly increasing at %s",
					ErrInvalidArgument, s.Name, s.Points[j].Date.Format(time.DateOnly))
			}
		}
		fields[i] = s.Name
	}

	cursor := make([]int, len(series))
	last := make([]*float64, len(series))
	ds := AlignedDataset{Fields: fields}

	for {
		day, ok := nextDate(series, cursor)
		if !ok {
			break
		}
		row := AlignedRow{Date: day, Cells: make([]Cell, len(series))}
		keep := true
		for i, s := range series {
			policy := policies[s.Name]
			var cell Cell
			if c := cursor[i]; c < len(s.Points) && s.Points[c].Date.Equal(day) {
				v := s.Points[c].Value
				cell = Cell{Value: v}
				last[i] = &v
				cursor[i]++
			} else {
				cell = fill(policy.Fill, last[i])
			}
			if cell.Absent && !policy.Optional {
				keep = false
			}
			row.Cells[i] = cell
		}
		if keep {
			ds.Rows = append(ds.Rows, row)
		}
	}

	if len(ds.Rows) == 0 {
		return ds, fmt.Errorf("%w: no dates survive alignment", ErrInsufficientData)
	}
	return ds, nil
}

func fill(policy FillPolicy, last *float64) Cell {
	switch policy {
	case FillZero:
		return Cell{Value: 0, Filled: true}
	case FillForward:
		if last != nil {
			return Cell{Value: *last, Filled: true}
		}
	}
	return Cell{Absent: true}
}

// nextDate returns the smallest pending date across all series cursors.
func nextDate(series []DailySeries, cursor []int) (time.Time, bool) {
	var (
		min   time.Time
		found bool
	)
	for i, s := range series {
		if cursor[i] >= len(s.Points) {
			continue
		}
		d := s.Points[cursor[i]].Date
		if !found || d.Before(min) {
			min, found = d, true
		}
	}
	return min, found
}
