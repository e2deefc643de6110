// Command validate checks the integrity of a run's outputs: it re-reads the
// exported dataset, recomputes every summary and lag correlation from it, and
// verifies they match the published summary.
//
// Usage:
//
//	go run ./cmd/validate -dataset out/dataset.csv -summary out/summary.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/export"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// tolerance bounds the float difference accepted between published and
// recomputed statistics.
const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	datasetPath := flag.String("dataset", "out/"+export.DatasetFile, "path to the exported dataset CSV")
	summaryPath := flag.String("summary", "out/"+export.SummaryFile, "path to the published summary JSON")
	maxLag := flag.Int("max-lag", 15, "max lag used when the summary publishes no lag result")
	threshold := flag.Float64("threshold", 3.0, "flood threshold used when the summary publishes no period summary")
	flag.Parse()

	os.Exit(run(*datasetPath, *summaryPath, params{maxLag: *maxLag, threshold: *threshold}))
}

// params are the analysis settings a run was produced with.
type params struct {
	maxLag    int
	threshold float64
}

// fromReport takes the settings recorded in the report, keeping the
// defaults for those it does not publish.
func (p params) fromReport(rep domain.Report) params {
	for _, pr := range append([]domain.PeriodReport{rep.Overall}, rep.Periods...) {
		if pr.Lag != nil {
			p.maxLag = pr.Lag.MaxLag
		}
		if pr.Summary != nil {
			p.threshold = pr.Summary.Threshold
		}
	}
	return p
}

func run(datasetPath, summaryPath string, defaults params) int {
	fmt.Println("=== Hydro Lag Output Validation ===")
	fmt.Println()

	ds, err := loadDataset(datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}
	rep, err := loadSummary(summaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load summary: %v\n", err)
		return 1
	}

	settings := defaults.fromReport(rep)
	phases := []*phase{
		validateDataset(ds),
		validatePeriod(ds, rep.Overall, settings),
		validatePeriods(ds, rep, settings),
		validateComparisons(rep),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Dataset: %d days, fields %v; run %s\n", ds.Len(), ds.Fields, rep.RunID)
	printLags(rep.Overall)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadDataset(path string) (domain.AlignedDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.AlignedDataset{}, err
	}
	defer f.Close()
	return export.ReadDataset(f, export.DefaultOptions())
}

func loadSummary(path string) (domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Report{}, err
	}
	var rep domain.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return domain.Report{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return rep, nil
}

// ── Phase 1: dataset structure ──

func validateDataset(ds domain.AlignedDataset) *phase {
	p := &phase{name: "Dataset structure"}
	for _, field := range []string{domain.FieldLevel, domain.FieldPrecipitation} {
		if _, ok := ds.FieldIndex(field); !ok {
			p.errorf("missing field %q", field)
		}
	}
	if !p.passed() {
		return p
	}

	level, _ := ds.Column(domain.FieldLevel)
	rain, _ := ds.Column(domain.FieldPrecipitation)
	var gaps, absentRain int
	for i, row := range ds.Rows {
		if level[i].Absent {
			p.errorf("%s: level is absent", row.Date.Format("2006-01-02"))
		}
		if rain[i].Absent {
			absentRain++
		} else if rain[i].Value < 0 {
			p.errorf("%s: negative rainfall %g", row.Date.Format("2006-01-02"), rain[i].Value)
		}
		if i > 0 && row.Date.Sub(ds.Rows[i-1].Date).Hours() > 24 {
			gaps++
		}
	}
	fmt.Printf("  Dataset: %d calendar gaps, %d days without rainfall data\n", gaps, absentRain)
	return p
}

// ── Phase 2: per-period recomputation ──

func validatePeriod(ds domain.AlignedDataset, published domain.PeriodReport, settings params) *phase {
	p := &phase{name: "Overall summary and lag"}
	checkPeriod(p, ds, published, settings)
	return p
}

func validatePeriods(ds domain.AlignedDataset, rep domain.Report, settings params) *phase {
	p := &phase{name: "Configured periods"}
	for _, pr := range rep.Periods {
		checkPeriod(p, ds, pr, settings)
	}
	return p
}

func checkPeriod(p *phase, ds domain.AlignedDataset, published domain.PeriodReport, settings params) {
	got, err := domain.AnalyzePeriod(ds, published.Period, domain.FieldLevel, domain.FieldPrecipitation,
		settings.maxLag, settings.threshold)
	if err != nil {
		p.errorf("%s: recompute: %v", published.Name, err)
		return
	}
	if got.Status != published.Status {
		p.errorf("%s: status %q, recomputed %q", published.Name, published.Status, got.Status)
		return
	}

	switch {
	case (got.Summary == nil) != (published.Summary == nil):
		p.errorf("%s: summary presence differs", published.Name)
	case got.Summary != nil:
		a, b := published.Summary, got.Summary
		if a.Days != b.Days || a.DaysAboveThreshold != b.DaysAboveThreshold || !a.PeakDate.Equal(b.PeakDate) {
			p.errorf("%s: summary counts differ: published %+v, recomputed %+v", published.Name, *a, *b)
		}
		if !near(a.PeakLevel, b.PeakLevel) || !near(a.MeanLevel, b.MeanLevel) || !near(a.TotalRain, b.TotalRain) {
			p.errorf("%s: summary values differ: published %+v, recomputed %+v", published.Name, *a, *b)
		}
	}

	if published.Lag == nil || got.Lag == nil {
		if (published.Lag == nil) != (got.Lag == nil) {
			p.errorf("%s: lag presence differs", published.Name)
		}
		return
	}
	if published.Lag.Best.Lag != got.Lag.Best.Lag {
		p.errorf("%s: best lag %d, recomputed %d", published.Name, published.Lag.Best.Lag, got.Lag.Best.Lag)
	}
	recomputed := got.Lag.Coefficients()
	for lag, r := range published.Lag.Coefficients() {
		if want, ok := recomputed[lag]; !ok || !near(r, want) {
			p.errorf("%s: lag %d coefficient %.12f, recomputed %.12f", published.Name, lag, r, want)
		}
	}
	if len(published.Accumulated) != len(got.Accumulated) {
		p.errorf("%s: %d accumulated points, recomputed %d", published.Name, len(published.Accumulated), len(got.Accumulated))
	}
}

// ── Phase 3: comparisons ──

func validateComparisons(rep domain.Report) *phase {
	p := &phase{name: "Period comparisons"}
	summaries := make(map[string]domain.PeriodSummary, len(rep.Periods))
	for _, pr := range rep.Periods {
		if pr.Summary != nil {
			summaries[pr.Name] = *pr.Summary
		}
	}
	for _, c := range rep.Comparisons {
		a, okA := summaries[c.From]
		b, okB := summaries[c.To]
		if !okA || !okB {
			p.errorf("%s → %s: compares a period without a summary", c.From, c.To)
			continue
		}
		want := domain.Compare(c.From, a, c.To, b)
		if !near(c.PeakDelta, want.PeakDelta) || !near(c.MeanDelta, want.MeanDelta) || !near(c.RainDelta, want.RainDelta) {
			p.errorf("%s → %s: deltas %+v, recomputed %+v", c.From, c.To, c, want)
		}
	}
	return p
}

func printLags(pr domain.PeriodReport) {
	if pr.Lag == nil {
		fmt.Printf("Lag: %s (%s)\n", pr.Status, pr.Reason)
		return
	}
	fmt.Println("Lag  r          samples")
	for _, s := range pr.Lag.Scores {
		marker := ""
		if s.Lag == pr.Lag.Best.Lag {
			marker = "  <- best"
		}
		fmt.Printf("%3d  %+.6f  %7d%s\n", s.Lag, s.Coefficient, s.Samples, marker)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(b))
}
