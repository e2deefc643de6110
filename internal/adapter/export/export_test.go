package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testDataset() domain.AlignedDataset {
	return domain.AlignedDataset{
		Fields: []string{domain.FieldPrecipitation, domain.FieldLevel},
		Rows: []domain.AlignedRow{
			{Date: day(0), Cells: []domain.Cell{{Value: 12.6}, {Value: 3.15}}},
			{Date: day(1), Cells: []domain.Cell{{Value: 0}, {Absent: true}}},
			{Date: day(2), Cells: []domain.Cell{{Value: 104.8}, {Value: 4.72}}},
		},
	}
}

func testReport() domain.Report {
	pv := 0.01
	best := domain.LagScore{Lag: 2, Coefficient: 0.81, Samples: 40, PValue: &pv}
	return domain.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Dataset:     testDataset(),
		Overall: domain.PeriodReport{
			Period:  domain.Period{Name: "all"},
			Status:  domain.StatusOK,
			Summary: &domain.PeriodSummary{Days: 3, PeakLevel: 4.72, PeakDate: day(2)},
			Lag: &domain.LagCorrelationResult{
				Driver: domain.FieldPrecipitation, Response: domain.FieldLevel, MaxLag: 2,
				Scores: []domain.LagScore{{Lag: 1, Coefficient: 0.4, Samples: 41}, best},
				Best:   &best,
			},
		},
		Periods: []domain.PeriodReport{{
			Period: domain.Period{Name: "2025", Range: domain.DateRange{From: day(365), To: day(426)}},
			Status: domain.StatusInsufficientData,
			Reason: "no level values",
		}},
	}
}

func TestWriteDataset(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteDataset(&buf, testDataset(), DefaultOptions()))

	want := "date;year;day_of_year;precipitation_mm;level_m\n" +
		"2024-04-30;2024;121;12,6;3,15\n" +
		"2024-05-01;2024;122;0;\n" +
		"2024-05-02;2024;123;104,8;4,72\n"
	assert.Equal(t, want, buf.String())
}

func TestReadDataset(t *testing.T) {
	t.Run("written file reads back", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteDataset(&buf, testDataset(), DefaultOptions()))

		got, err := ReadDataset(&buf, DefaultOptions())

		require.NoError(t, err)
		if diff := cmp.Diff(testDataset(), got); diff != "" {
			t.Errorf("dataset mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("dot decimal convention", func(t *testing.T) {
		opts := Options{Delimiter: ',', DecimalComma: false}
		var buf bytes.Buffer
		require.NoError(t, WriteDataset(&buf, testDataset(), opts))
		assert.Contains(t, buf.String(), "2024-04-30,2024,121,12.6,3.15")

		got, err := ReadDataset(&buf, opts)

		require.NoError(t, err)
		assert.Equal(t, 104.8, got.Rows[2].Cells[0].Value)
	})

	t.Run("wrong header", func(t *testing.T) {
		_, err := ReadDataset(strings.NewReader("data;ano;dia_do_ano;precipitacao_mm\n"), DefaultOptions())
		var fe *domain.FormatError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("dates out of order", func(t *testing.T) {
		in := "date;year;day_of_year;level_m\n2024-05-02;2024;123;1\n2024-05-01;2024;122;1\n"
		_, err := ReadDataset(strings.NewReader(in), DefaultOptions())
		var fe *domain.FormatError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadDataset(strings.NewReader(""), DefaultOptions())
		var fe *domain.FormatError
		assert.ErrorAs(t, err, &fe)
	})
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSummary(&buf, testReport()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.NotContains(t, got, "Dataset")
	overall := got["overall"].(map[string]any)
	assert.Equal(t, "all", overall["name"])
	best := overall["lag"].(map[string]any)["best"].(map[string]any)
	assert.InDelta(t, 2, best["lag"], 0)
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, testReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetDataset)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"date", "year", "day_of_year", domain.FieldPrecipitation, domain.FieldLevel}, rows[0])
	assert.Equal(t, "2024-04-30", rows[1][0])

	lags, err := f.GetRows(sheetLags)
	require.NoError(t, err)
	assert.Len(t, lags, 3)

	periods, err := f.GetRows(sheetPeriods)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, "2025", periods[2][0])
	assert.Equal(t, domain.StatusInsufficientData, periods[2][3])
}

func TestFileLoader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loader := NewFileLoader(dir, DefaultOptions(), true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, loader.Load(context.Background(), testReport()))

	for _, name := range []string{DatasetFile, SummaryFile, WorkbookFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files left behind")

	f, err := os.Open(filepath.Join(dir, DatasetFile))
	require.NoError(t, err)
	defer f.Close()
	ds, err := ReadDataset(f, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}
