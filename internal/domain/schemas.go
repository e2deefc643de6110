package domain

// Field names used in the consolidated dataset.
const (
	FieldLevel         = "level_m"
	FieldPrecipitation = "precipitation_mm"
)

// INMETPrecipitationColumn is the hourly rainfall header of INMET station files.
const INMETPrecipitationColumn = "PRECIPITAÇÃO TOTAL, HORÁRIO (mm)"

// RiverLevelCSV describes the river telemetry export: a timestamp column and a
// level column carrying a unit token, e.g. "03/05/2024 14:15","5,33 m".
// Columns are positional because the export's header text is not stable.
func RiverLevelCSV() Schema {
	return Schema{
		Name:         "river-level-csv",
		Delimiter:    ',',
		Encoding:     EncodingUTF8,
		Date:         ByIndex(0),
		TimeLayout:   "02/01/2006 15:04",
		Value:        ByIndex(1),
		DecimalComma: true,
		UnitSuffix:   "m",
	}
}

// INMETStationCSV describes the yearly station files downloaded from the INMET
// historical data portal.
func INMETStationCSV() Schema {
	hour := ByName("Hora UTC")
	return Schema{
		Name:         "inmet-station-csv",
		Delimiter:    ';',
		Encoding:     EncodingLatin1,
		SkipLines:    8,
		Date:         ByName("Data"),
		Hour:         &hour,
		HourCode:     true,
		TimeLayout:   "2006/01/02 15:04",
		Value:        ByName(INMETPrecipitationColumn),
		DecimalComma: true,
	}
}

// INMETAPI describes the station endpoint of the INMET weather API once its
// JSON records have been flattened into a table keyed by field name.
func INMETAPI() Schema {
	hour := ByName("HR_MEDICAO")
	return Schema{
		Name:       "inmet-api",
		Encoding:   EncodingUTF8,
		Date:       ByName("DT_MEDICAO"),
		Hour:       &hour,
		HourCode:   true,
		TimeLayout: "2006-01-02 15:04",
		Value:      ByName("CHUVA"),
	}
}

// ANATelemetryCSV describes the HidroWeb telemetry download. Levels are
// reported in centimetres and scaled to metres.
func ANATelemetryCSV() Schema {
	hour := ByName("Hora")
	return Schema{
		Name:         "ana-telemetry-csv",
		Delimiter:    ';',
		Encoding:     EncodingUTF8,
		SkipLines:    13,
		Date:         ByName("Data"),
		Hour:         &hour,
		TimeLayout:   "02/01/2006 15:04:05",
		Value:        ByName("Nivel_1"),
		DecimalComma: true,
		Scale:        0.01,
	}
}
