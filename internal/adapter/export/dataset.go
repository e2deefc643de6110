// Package export writes analysis results for downstream consumers: the
// consolidated daily dataset as delimited text, a JSON summary and an
// optional workbook.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// Leading columns of a consolidated dataset.
var keyColumns = []string{"date", "year", "day_of_year"}

// Options selects the text convention of a consolidated dataset.
type Options struct {
	Delimiter    rune
	DecimalComma bool
}

// DefaultOptions is the regional convention: ';' separated, ',' decimal mark.
func DefaultOptions() Options {
	return Options{Delimiter: ';', DecimalComma: true}
}

// WriteDataset writes one line per date with columns
// date;year;day_of_year;<fields...>. Absent cells are written empty.
func WriteDataset(w io.Writer, ds domain.AlignedDataset, opts Options) error {
	cw := csv.NewWriter(w)
	cw.Comma = opts.Delimiter

	header := append(append([]string{}, keyColumns...), ds.Fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range ds.Rows {
		record[0] = row.Date.Format(time.DateOnly)
		record[1] = strconv.Itoa(row.Date.Year())
		record[2] = strconv.Itoa(row.Date.YearDay())
		for i, c := range row.Cells {
			if c.Absent {
				record[3+i] = ""
				continue
			}
			record[3+i] = domain.FormatDecimal(c.Value, opts.DecimalComma)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", record[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDataset reads a consolidated dataset written by WriteDataset. The
// year and day_of_year columns are derived values and are not checked.
// Whether a cell was produced by a fill policy is not recorded in the file.
func ReadDataset(r io.Reader, opts Options) (domain.AlignedDataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.AlignedDataset{}, &domain.FormatError{Source: "dataset", Err: errors.New("empty file")}
		}
		return domain.AlignedDataset{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) < len(keyColumns) {
		return domain.AlignedDataset{}, &domain.FormatError{Source: "dataset", Err: fmt.Errorf("header %v lacks key columns", header)}
	}
	for i, k := range keyColumns {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")), k) {
			return domain.AlignedDataset{}, &domain.FormatError{Source: "dataset", Err: fmt.Errorf("column %d is %q, want %q", i, header[i], k)}
		}
	}

	schema := domain.Schema{DecimalComma: opts.DecimalComma}
	ds := domain.AlignedDataset{Fields: append([]string{}, header[len(keyColumns):]...)}
	var prev time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ds, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			return ds, &domain.FormatError{Source: "dataset", Rows: line - 1, Err: fmt.Errorf("line %d: %w", line, err)}
		}
		if !prev.IsZero() && !date.After(prev) {
			return ds, &domain.FormatError{Source: "dataset", Rows: line - 1, Err: fmt.Errorf("line %d: dates not increasing", line)}
		}
		prev = date

		row := domain.AlignedRow{Date: date, Cells: make([]domain.Cell, len(ds.Fields))}
		for i := range ds.Fields {
			v, ok := domain.ParseValue(rec[len(keyColumns)+i], schema)
			row.Cells[i] = domain.Cell{Value: v, Absent: !ok}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}
