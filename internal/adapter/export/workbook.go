package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

const (
	sheetDataset = "dataset"
	sheetPeriods = "periods"
	sheetLags    = "lags"
)

// WriteWorkbook writes the report as a spreadsheet with one sheet for the
// daily dataset, one for period summaries and one for the per-lag scores.
func WriteWorkbook(w io.Writer, rep domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetDataset); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetPeriods, sheetLags} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	if err := writeDatasetSheet(f, rep.Dataset); err != nil {
		return err
	}
	if err := writePeriodSheets(f, rep); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeDatasetSheet(f *excelize.File, ds domain.AlignedDataset) error {
	header := []any{"date", "year", "day_of_year"}
	for _, name := range ds.Fields {
		header = append(header, name)
	}
	if err := setRow(f, sheetDataset, 1, header); err != nil {
		return err
	}
	for i, row := range ds.Rows {
		values := []any{row.Date.Format(time.DateOnly), row.Date.Year(), row.Date.YearDay()}
		for _, c := range row.Cells {
			if c.Absent {
				values = append(values, nil)
				continue
			}
			values = append(values, c.Value)
		}
		if err := setRow(f, sheetDataset, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writePeriodSheets(f *excelize.File, rep domain.Report) error {
	periods := append([]domain.PeriodReport{rep.Overall}, rep.Periods...)

	err := setRow(f, sheetPeriods, 1, []any{
		"period", "from", "to", "status", "days", "peak_level_m", "peak_date",
		"mean_level_m", "total_rain_mm", "days_above_threshold", "best_lag", "best_coefficient",
	})
	if err != nil {
		return err
	}
	if err := setRow(f, sheetLags, 1, []any{"period", "lag", "coefficient", "p_value", "samples"}); err != nil {
		return err
	}

	lagRow := 2
	for i, p := range periods {
		values := []any{p.Name, dateOrEmpty(p.Range.From), dateOrEmpty(p.Range.To), p.Status}
		if s := p.Summary; s != nil {
			values = append(values, s.Days, s.PeakLevel, s.PeakDate.Format(time.DateOnly),
				s.MeanLevel, s.TotalRain, s.DaysAboveThreshold)
		} else {
			values = append(values, nil, nil, nil, nil, nil, nil)
		}
		if p.Lag != nil && p.Lag.Best != nil {
			values = append(values, p.Lag.Best.Lag, p.Lag.Best.Coefficient)
		}
		if err := setRow(f, sheetPeriods, i+2, values); err != nil {
			return err
		}

		if p.Lag == nil {
			continue
		}
		for _, s := range p.Lag.Scores {
			var pv any
			if s.PValue != nil {
				pv = *s.PValue
			}
			if err := setRow(f, sheetLags, lagRow, []any{p.Name, s.Lag, s.Coefficient, pv, s.Samples}); err != nil {
				return err
			}
			lagRow++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
