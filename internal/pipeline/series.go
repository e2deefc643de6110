package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// buildSeries extracts, parses and resamples every source concurrently. A
// source fails as a whole when any of its tables cannot be extracted or parsed.
func (p *Pipeline) buildSeries(ctx context.Context, logger *slog.Logger) ([]domain.DailySeries, []domain.SourceStats, error) {
	series := make([]domain.DailySeries, len(p.sources))
	stats := make([]domain.SourceStats, len(p.sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range p.sources {
		g.Go(func() error {
			s, st, err := p.buildOne(ctx, src, logger)
			series[i], stats[i] = s, st
			if err != nil {
				return fmt.Errorf("series %s: %w", src.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return series, stats, nil
}

func (p *Pipeline) buildOne(ctx context.Context, src SeriesSource, logger *slog.Logger) (domain.DailySeries, domain.SourceStats, error) {
	st := domain.SourceStats{Series: src.Name}
	if len(src.Extractors) == 0 {
		return domain.DailySeries{}, st, fmt.Errorf("%w: no extractors configured", domain.ErrSourceUnavailable)
	}

	var obs []domain.Observation
	for _, e := range src.Extractors {
		table, err := e.Extract(ctx)
		if err != nil {
			return domain.DailySeries{}, st, fmt.Errorf("extract %s: %w", describe(e), err)
		}
		res, err := domain.Parse(table, src.Schema)
		if err != nil {
			return domain.DailySeries{}, st, err
		}

		st.Tables++
		st.Rows += res.Rows
		st.Dropped += res.Dropped
		st.Absent += res.Absent
		p.metrics.RowsParsed.WithLabelValues(src.Name).Add(float64(res.Rows))
		p.metrics.RowsDropped.WithLabelValues(src.Name).Add(float64(res.Dropped))
		p.metrics.ValuesAbsent.WithLabelValues(src.Name).Add(float64(res.Absent))
		if res.Dropped > 0 || res.Absent > 0 {
			logger.Warn("rows skipped while parsing",
				"series", src.Name, "source", table.Source,
				"rows", res.Rows, "dropped", res.Dropped, "absent", res.Absent)
		}
		obs = append(obs, res.Observations...)
	}

	daily, err := domain.Resample(src.Name, obs, src.Aggregation)
	if err != nil {
		return domain.DailySeries{}, st, err
	}
	st.Days = daily.Len()
	logger.Debug("series resampled", "series", src.Name, "observations", len(obs), "days", daily.Len())
	return daily, st, nil
}

func describe(e Extractor) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e)
}
