package domain

import (
	"errors"
	"fmt"
	"time"
)

// Period is a named calendar window of interest, such as one rainy season.
type Period struct {
	Name  string    `json:"name"`
	Range DateRange `json:"range"`
}

// PeriodSummary describes the level and rainfall behaviour over one window.
type PeriodSummary struct {
	Days               int       `json:"days"`
	PeakLevel          float64   `json:"peak_level_m"`
	PeakDate           time.Time `json:"peak_date"`
	MeanLevel          float64   `json:"mean_level_m"`
	TotalRain          float64   `json:"total_rain_mm"`
	DaysAboveThreshold int       `json:"days_above_threshold"`
	Threshold          float64   `json:"threshold_m"`
}

// Summarize computes a PeriodSummary over every row of ds. Absent cells are
// skipped; the earliest date wins a tie for the peak.
func Summarize(ds AlignedDataset, levelField, rainField string, threshold float64) (PeriodSummary, error) {
	level, err := ds.Column(levelField)
	if err != nil {
		return PeriodSummary{}, err
	}
	rain, err := ds.Column(rainField)
	if err != nil {
		return PeriodSummary{}, err
	}

	s := PeriodSummary{Days: ds.Len(), Threshold: threshold}
	var (
		levelSum  float64
		levelDays int
	)
	for i, row := range ds.Rows {
		if c := rain[i]; !c.Absent {
			s.TotalRain += c.Value
		}
		c := level[i]
		if c.Absent {
			continue
		}
		if levelDays == 0 || c.Value > s.PeakLevel {
			s.PeakLevel, s.PeakDate = c.Value, row.Date
		}
		levelSum += c.Value
		levelDays++
		if c.Value > threshold {
			s.DaysAboveThreshold++
		}
	}
	if levelDays == 0 {
		return s, fmt.Errorf("%w: no %q values in period", ErrInsufficientData, levelField)
	}
	s.MeanLevel = levelSum / float64(levelDays)
	return s, nil
}

// PeriodComparison contrasts two period summaries; deltas are b minus a.
type PeriodComparison struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	PeakDelta float64 `json:"peak_delta_m"`
	MeanDelta float64 `json:"mean_delta_m"`
	RainDelta float64 `json:"rain_delta_mm"`
}

// Compare reports how period b differs from period a.
func Compare(aName string, a PeriodSummary, bName string, b PeriodSummary) PeriodComparison {
	return PeriodComparison{
		From:      aName,
		To:        bName,
		PeakDelta: b.PeakLevel - a.PeakLevel,
		MeanDelta: b.MeanLevel - a.MeanLevel,
		RainDelta: b.TotalRain - a.TotalRain,
	}
}

// AnalyzePeriod summarizes and lag-analyzes the rows of ds within p. A window
// without data yields a report with StatusInsufficientData rather than an error;
// other failures are returned.
func AnalyzePeriod(ds AlignedDataset, p Period, levelField, rainField string, maxLag int, threshold float64) (PeriodReport, error) {
	rep := PeriodReport{Period: p, Status: StatusOK}
	window := ds.Window(p.Range.From, p.Range.To)

	summary, err := Summarize(window, levelField, rainField, threshold)
	switch {
	case errors.Is(err, ErrInsufficientData):
		rep.Status, rep.Reason = StatusInsufficientData, err.Error()
		return rep, nil
	case err != nil:
		return rep, err
	}
	rep.Summary = &summary

	lag, err := AnalyzeLag(window, rainField, levelField, maxLag)
	switch {
	case errors.Is(err, ErrInsufficientData):
		rep.Status, rep.Reason = StatusInsufficientData, err.Error()
	case err != nil:
		return rep, err
	default:
		rep.Lag = &lag
		if rep.Accumulated, err = AccumulatedDriver(window, rainField, levelField, lag.Best.Lag); err != nil {
			return rep, err
		}
	}
	return rep, nil
}
