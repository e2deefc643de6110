package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/pipeline"
)

var start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// rainOn is a repeating rainfall pattern in mm: 0, 6, 12, 3, 9.
func rainOn(d int) float64 {
	return float64((d*7)%5) * 3
}

// levelOn responds to the rain of the two preceding days only.
func levelOn(d int) float64 {
	level := 2.0
	for k := 1; k <= 2; k++ {
		if d-k >= 0 {
			level += 0.1 * rainOn(d-k)
		}
	}
	return level
}

// rainTable renders days of rainfall as flattened INMET API records, each day
// split into two readings.
func rainTable(days int) domain.RawTable {
	lines := [][]string{{"CHUVA", "DT_MEDICAO", "HR_MEDICAO"}}
	for d := range days {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		half := fmt.Sprintf("%.1f", rainOn(d)/2)
		lines = append(lines,
			[]string{half, date, "0600"},
			[]string{half, date, "1800"},
		)
	}
	return domain.RawTable{Source: "inmet-test", Lines: lines}
}

// riverTable renders days of river level in the telemetry CSV format with two
// identical readings per day.
func riverTable(days int) domain.RawTable {
	lines := [][]string{{"Data", "Nivel"}}
	for d := range days {
		day := start.AddDate(0, 0, d)
		level := strings.Replace(fmt.Sprintf("%.2f m", levelOn(d)), ".", ",", 1)
		lines = append(lines,
			[]string{day.Add(8 * time.Hour).Format("02/01/2006 15:04"), level},
			[]string{day.Add(20 * time.Hour).Format("02/01/2006 15:04"), level},
		)
	}
	return domain.RawTable{Source: "river-test", Lines: lines}
}

type tableExtractor struct {
	table domain.RawTable
	err   error
}

func (e tableExtractor) Extract(_ context.Context) (domain.RawTable, error) {
	return e.table, e.err
}

func riverSource(exts ...pipeline.Extractor) pipeline.SeriesSource {
	return pipeline.SeriesSource{
		Name:        domain.FieldLevel,
		Schema:      domain.RiverLevelCSV(),
		Aggregation: domain.AggregateMean,
		Policy:      domain.FieldPolicy{Fill: domain.FillDrop},
		Extractors:  exts,
	}
}

func rainSource(exts ...pipeline.Extractor) pipeline.SeriesSource {
	return pipeline.SeriesSource{
		Name:        domain.FieldPrecipitation,
		Schema:      domain.INMETAPI(),
		Aggregation: domain.AggregateSum,
		Policy:      domain.FieldPolicy{Fill: domain.FillZero, Optional: true},
		Extractors:  exts,
	}
}

func period(name, from, to string) domain.Period {
	r, err := parseRange(from, to)
	if err != nil {
		panic(err)
	}
	return domain.Period{Name: name, Range: r}
}

func parseRange(from, to string) (domain.DateRange, error) {
	f, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return domain.DateRange{}, err
	}
	t, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.DateRange{From: f, To: t}, nil
}

func testAnalysis() pipeline.Analysis {
	return pipeline.Analysis{
		Driver:         domain.FieldPrecipitation,
		Response:       domain.FieldLevel,
		MaxLag:         5,
		FloodThreshold: 3.6,
		Periods: []domain.Period{
			period("january", "2024-01-01", "2024-01-31"),
			period("february", "2024-02-01", "2024-02-29"),
			period("2025", "2025-01-01", "2025-12-31"),
		},
	}
}
