//go:build smoke

package inmet

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// These tests hit the real INMET API.
// Run with: go test -tags=smoke ./internal/adapter/inmet/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 1
	hc := httpclient.New("inmet", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	return NewClient(hc, "https://apitempo.inmet.gov.br")
}

func TestSmoke_Station(t *testing.T) {
	c := smokeClient(t)
	r := domain.DateRange{
		From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}

	table, err := c.Station(context.Background(), "A801", r)
	require.NoError(t, err)

	res, err := domain.Parse(table, domain.INMETAPI())
	require.NoError(t, err)
	assert.Greater(t, len(res.Observations), 24)

	daily, err := domain.Resample(domain.FieldPrecipitation, res.Observations, domain.AggregateSum)
	require.NoError(t, err)
	assert.LessOrEqual(t, daily.Len(), 3)
}
