package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inmetPreamble() [][]string {
	return [][]string{
		{"REGIAO:", "S"},
		{"UF:", "RS"},
		{"ESTACAO:", "PORTO ALEGRE"},
		{"CODIGO (WMO):", "A801"},
		{"LATITUDE:", "-30,05"},
		{"LONGITUDE:", "-51,17"},
		{"ALTITUDE:", "46,97"},
		{"DATA DE FUNDACAO:", "22/09/00"},
	}
}

func TestParse(t *testing.T) {
	t.Run("river level CSV", func(t *testing.T) {
		table := RawTable{Source: "rio.csv", Lines: [][]string{
			{"Data", "Medicao"},
			{"03/05/2024 14:15", "5,33 m"},
			{"03/05/2024 14:30", "5,41 M"},
			{"03/05/2024 14:45", "n/d"},
			{"", ""},
			{"not a date", "5,50 m"},
		}}

		res, err := Parse(table, RiverLevelCSV())

		require.NoError(t, err)
		assert.Equal(t, 4, res.Rows)
		assert.Equal(t, 1, res.Dropped)
		assert.Equal(t, 1, res.Absent)
		require.Len(t, res.Observations, 3)
		assert.Equal(t, time.Date(2024, 5, 3, 14, 15, 0, 0, time.UTC), res.Observations[0].Time)
		assert.InDelta(t, 5.33, res.Observations[0].Value, 1e-9)
		assert.InDelta(t, 5.41, res.Observations[1].Value, 1e-9)
		assert.True(t, res.Observations[2].Absent)
	})

	t.Run("INMET station CSV", func(t *testing.T) {
		lines := append(inmetPreamble(),
			[]string{"Data", "Hora UTC", INMETPrecipitationColumn, "TEMPERATURA DO AR - BULBO SECO, HORARIO (°C)"},
			[]string{"2024/05/01", "0000 UTC", "0,2", "18,1"},
			[]string{"2024/05/01", "900 UTC", "12,6", "17,0"},
			[]string{"2024/05/01", "1300 UTC", "", "21,4"},
			[]string{"2024/05/01", "2500 UTC", "1,0", "21,4"},
		)

		res, err := Parse(RawTable{Source: "inmet.csv", Lines: lines}, INMETStationCSV())

		require.NoError(t, err)
		assert.Equal(t, 4, res.Rows)
		assert.Equal(t, 1, res.Dropped)
		assert.Equal(t, 1, res.Absent)
		require.Len(t, res.Observations, 3)
		assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), res.Observations[1].Time)
		assert.InDelta(t, 12.6, res.Observations[1].Value, 1e-9)
		assert.True(t, res.Observations[2].Absent)
	})

	t.Run("ANA telemetry scales centimetres", func(t *testing.T) {
		lines := make([][]string, 13)
		for i := range lines {
			lines[i] = []string{"// preamble"}
		}
		lines = append(lines,
			[]string{"EstacaoCodigo", "Data", "Hora", "Nivel_1"},
			[]string{"66900000", "01/05/2024", "07:00:00", "523"},
			[]string{"66900000", "01/05/2024", "17:00:00", "531,5"},
		)

		res, err := Parse(RawTable{Lines: lines}, ANATelemetryCSV())

		require.NoError(t, err)
		require.Len(t, res.Observations, 2)
		assert.InDelta(t, 5.23, res.Observations[0].Value, 1e-9)
		assert.InDelta(t, 5.315, res.Observations[1].Value, 1e-9)
	})

	t.Run("no parsable rows", func(t *testing.T) {
		table := RawTable{Source: "broken.csv", Lines: [][]string{
			{"Data", "Medicao"},
			{"yesterday", "1,0 m"},
			{"today", "2,0 m"},
		}}

		_, err := Parse(table, RiverLevelCSV())

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "broken.csv", fe.Source)
		assert.Equal(t, 2, fe.Rows)
		assert.Equal(t, 2, fe.Dropped)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := Parse(RawTable{Lines: [][]string{{"Data", "Medicao"}}}, RiverLevelCSV())

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "river-level-csv", fe.Source)
	})

	t.Run("missing declared column", func(t *testing.T) {
		lines := append(inmetPreamble(),
			[]string{"Data", "Hora UTC", "RADIACAO GLOBAL (Kj/m²)"},
			[]string{"2024/05/01", "0000 UTC", "0,2"},
		)

		_, err := Parse(RawTable{Lines: lines}, INMETStationCSV())

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Error(), "not found in header")
	})

	t.Run("schema without layout", func(t *testing.T) {
		_, err := Parse(RawTable{}, Schema{Name: "bad"})
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestParseValue(t *testing.T) {
	comma := Schema{DecimalComma: true, UnitSuffix: "m"}
	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{"unit suffix", "1,23 m", 1.23, true},
		{"quoted", `"4,50 m"`, 4.5, true},
		{"thousands", "1.234,5", 1234.5, true},
		{"negative", "-0,7", -0.7, true},
		{"integer", "12", 12, true},
		{"empty", "", 0, false},
		{"unit only", " m", 0, false},
		{"text", "abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseValue(tt.in, comma)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("dot decimal", func(t *testing.T) {
		got, ok := ParseValue("3.75", Schema{})
		require.True(t, ok)
		assert.InDelta(t, 3.75, got, 1e-9)
	})
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "5,33", FormatDecimal(5.33, true))
	assert.Equal(t, "5.33", FormatDecimal(5.33, false))
	assert.Equal(t, "12", FormatDecimal(12, true))

	t.Run("non-finite renders empty", func(t *testing.T) {
		for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
			assert.NotPanics(t, func() { FormatDecimal(v, true) })
			assert.Empty(t, FormatDecimal(v, true))
		}
	})

	t.Run("round trips through ParseValue", func(t *testing.T) {
		schema := Schema{DecimalComma: true, UnitSuffix: "m"}
		for i := -2500; i < 2500; i++ {
			v := math.Round(float64(i)*37) / 100
			text := FormatDecimal(v, true) + " m"

			got, ok := ParseValue(text, schema)
			require.True(t, ok, text)
			require.InDelta(t, v, got, 1e-9, text)
			require.Equal(t, text, FormatDecimal(got, true)+" m")
		}
	})
}

func TestNormalizeHourCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1300 UTC", "13:00", false},
		{"900", "09:00", false},
		{"0", "00:00", false},
		{"0030", "00:30", false},
		{"2400", "", true},
		{"1260", "", true},
		{"UTC", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeHourCode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
