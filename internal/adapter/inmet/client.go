// Package inmet retrieves hourly station records from the INMET weather API.
package inmet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// Getter fetches a response body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client requests station data over a date range.
type Client struct {
	http    Getter
	baseURL string
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(http Getter, baseURL string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// Station fetches every hourly record of station within r and flattens the
// JSON records into a table whose header is the sorted union of record keys.
func (c *Client) Station(ctx context.Context, station string, r domain.DateRange) (domain.RawTable, error) {
	u := fmt.Sprintf("%s/estacao/%s/%s/%s", c.baseURL,
		r.From.Format(time.DateOnly), r.To.Format(time.DateOnly), url.PathEscape(station))

	body, err := c.http.Get(ctx, u)
	if err != nil {
		return domain.RawTable{}, err
	}
	source := fmt.Sprintf("inmet:%s:%s", station, r)
	return decodeRecords(body, source)
}

func decodeRecords(body []byte, source string) (domain.RawTable, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.RawTable{}, fmt.Errorf("%w: %s returned no records", domain.ErrSourceUnavailable, source)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return domain.RawTable{}, &domain.FormatError{Source: source, Err: fmt.Errorf("decode records: %w", err)}
	}
	if len(records) == 0 {
		return domain.RawTable{}, fmt.Errorf("%w: %s returned no records", domain.ErrSourceUnavailable, source)
	}

	keys := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			keys[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	lines := make([][]string, 0, len(records)+1)
	lines = append(lines, header)
	for _, rec := range records {
		line := make([]string, len(header))
		for i, k := range header {
			line[i] = text(rec[k])
		}
		lines = append(lines, line)
	}
	return domain.RawTable{Source: source, Lines: lines}, nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
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
	return e.client.Station(ctx, e.station, e.rng)
}

func (e *Extractor) String() string {
	return "inmet:" + e.station + ":" + e.rng.String()
}
