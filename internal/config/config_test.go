package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, SourceFile, cfg.SourceMode)
	assert.Equal(t, []string{"data/river_level.csv"}, cfg.RiverFiles)
	assert.Len(t, cfg.RainFiles, 2)
	assert.Equal(t, "66900000", cfg.RiverStation)
	assert.Equal(t, "A801", cfg.RainStation)
	assert.Len(t, cfg.FetchRanges, 2)
	assert.Equal(t, 15, cfg.MaxLag)
	assert.Equal(t, domain.FillZero, cfg.RainFill)
	assert.Equal(t, domain.FillDrop, cfg.LevelFill)
	assert.Equal(t, 3.0, cfg.FloodThreshold)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.False(t, cfg.OutputXLSX)
	assert.Zero(t, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 64, cfg.SourceCacheSize)
	assert.Equal(t, 3, cfg.ExtractRetries)
	assert.False(t, cfg.KafkaEnabled)

	require.Len(t, cfg.Periods, 2)
	assert.Equal(t, domain.Period{
		Name:  "2024",
		Range: domain.DateRange{From: date("2024-04-30"), To: date("2024-06-30")},
	}, cfg.Periods[0])
	assert.Equal(t, "2025", cfg.Periods[1].Name)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SOURCE_MODE", "HTTP")
	t.Setenv("RIVER_STATION", "87450004")
	t.Setenv("RAIN_STATION", "A802")
	t.Setenv("FETCH_RANGES", "2023-01-01:2023-12-31")
	t.Setenv("ANALYSIS_PERIODS", "flood=2024-04-25:2024-05-31")
	t.Setenv("MAX_LAG", "30")
	t.Setenv("RAIN_FILL", "drop")
	t.Setenv("LEVEL_FILL", "forward")
	t.Setenv("FLOOD_THRESHOLD_M", "3.6")
	t.Setenv("OUTPUT_XLSX", "true")
	t.Setenv("REFRESH_INTERVAL", "1h")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceHTTP, cfg.SourceMode)
	assert.Equal(t, "87450004", cfg.RiverStation)
	assert.Equal(t, "A802", cfg.RainStation)
	assert.Equal(t, []domain.DateRange{{From: date("2023-01-01"), To: date("2023-12-31")}}, cfg.FetchRanges)
	assert.Equal(t, []domain.Period{{
		Name:  "flood",
		Range: domain.DateRange{From: date("2024-04-25"), To: date("2024-05-31")},
	}}, cfg.Periods)
	assert.Equal(t, 30, cfg.MaxLag)
	assert.Equal(t, domain.FillDrop, cfg.RainFill)
	assert.Equal(t, domain.FillForward, cfg.LevelFill)
	assert.Equal(t, 3.6, cfg.FloodThreshold)
	assert.True(t, cfg.OutputXLSX)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"MAX_LAG", "0", "MAX_LAG"},
		{"MAX_LAG", "61", "MAX_LAG"},
		{"MAX_LAG", "many", "MAX_LAG"},
		{"RAIN_FILL", "interpolate", "RAIN_FILL"},
		{"FLOOD_THRESHOLD_M", "-1", "FLOOD_THRESHOLD_M"},
		{"SOURCE_MODE", "ftp", "SOURCE_MODE"},
		{"LOG_LEVEL", "trace", "LOG_LEVEL"},
		{"HTTP_TIMEOUT", "0s", "HTTP_TIMEOUT"},
		{"SOURCE_CACHE_SIZE", "0", "SOURCE_CACHE_SIZE"},
		{"ANALYSIS_PERIODS", "2024-04-30:2024-06-30", "ANALYSIS_PERIODS"},
		{"ANALYSIS_PERIODS", "late=2024-06-30:2024-04-30", "ANALYSIS_PERIODS"},
		{"FETCH_RANGES", "2024-01-01", "FETCH_RANGES"},
		{"INMET_BASE_URL", "not a url", "INMET_BASE_URL"},
		{"OUTPUT_XLSX", "maybe", "OUTPUT_XLSX"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_KafkaRequiresTopics(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_DATASET_TOPIC", " ")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_DATASET_TOPIC")
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange(" 2024-04-30 : 2024-06-30 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30:2024-06-30", r.String())

	_, err = ParseDateRange("30/04/2024:30/06/2024")
	assert.Error(t, err)
}
