package domain

import "time"

// Status values for a PeriodReport.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// SourceStats summarizes the parse outcome of one series.
type SourceStats struct {
	Series  string `json:"series"`
	Tables  int    `json:"tables"`
	Rows    int    `json:"rows"`
	Dropped int    `json:"dropped"`
	Absent  int    `json:"absent"`
	Days    int    `json:"days"`
}

// PeriodReport is the analysis of one configured period. Lag is nil when
// Status is StatusInsufficientData, and so is Summary if the window holds no
// level values.
type PeriodReport struct {
	Period
	Status  string                `json:"status"`
	Reason  string                `json:"reason,omitempty"`
	Summary *PeriodSummary        `json:"summary,omitempty"`
	Lag     *LagCorrelationResult `json:"lag,omitempty"`

	// Accumulated pairs each date with the driver summed over the best lag.
	Accumulated []AccumulatedPoint `json:"accumulated,omitempty"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Sources     []SourceStats      `json:"sources"`
	Dataset     AlignedDataset     `json:"-"`
	Overall     PeriodReport       `json:"overall"`
	Periods     []PeriodReport     `json:"periods"`
	Comparisons []PeriodComparison `json:"comparisons,omitempty"`
}
