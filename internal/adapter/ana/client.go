// Package ana downloads river telemetry from the ANA HidroWeb service.
package ana

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/file"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

const dateLayout = "02/01/2006"

// Getter fetches a response body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client requests telemetry CSV documents.
type Client struct {
	http    Getter
	baseURL string
	schema  domain.Schema
}

// NewClient creates a client for the API rooted at baseURL. Responses are
// split with schema's delimiter and encoding.
func NewClient(http Getter, baseURL string, schema domain.Schema) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/"), schema: schema}
}

// Telemetry downloads the telemetry document of station for r.
func (c *Client) Telemetry(ctx context.Context, station string, r domain.DateRange) (domain.RawTable, error) {
	q := url.Values{}
	q.Set("codEstains", station)
	q.Set("dataInicio", r.From.Format(dateLayout))
	q.Set("dataFim", r.To.Format(dateLayout))
	q.Set("tipoArquivo", "3")
	u := c.baseURL + "/documento/gerarTelemetricas?" + q.Encode()

	body, err := c.http.Get(ctx, u)
	if err != nil {
		return domain.RawTable{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.RawTable{}, fmt.Errorf("%w: empty telemetry document for station %s", domain.ErrSourceUnavailable, station)
	}
	source := fmt.Sprintf("ana:%s:%s", station, r)
	return file.ReadTable(bytes.NewReader(body), source, c.schema.Delimiter, c.schema.Encoding)
}

// Extractor binds a station and date range to a Client.
type Extractor struct {
	client  *Client
	station string
	rng     domain.DateRange
}

// NewExtractor creates an extractor for one station and range.
func NewExtractor(client *Client, station string, r domain.DateRange) *Extractor {
	return &Extractor{client: client, station: station, rng: r}
}

// Extract fetches the bound range.
func (e *Extractor) Extract(ctx context.Context) (domain.RawTable, error) {
	return e.client.Telemetry(ctx, e.station, e.rng)
}

func (e *Extractor) String() string {
	return "ana:" + e.station + ":" + e.rng.String()
}
