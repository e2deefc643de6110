package main

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/ana"
	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/cache"
	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/file"
	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/inmet"
	"github.com/couchcryptid/hydro-lag-etl/internal/config"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
	"github.com/couchcryptid/hydro-lag-etl/internal/pipeline"
)

// buildSources assembles the river and rainfall series from local files or,
// in http mode, from the ANA and INMET services behind a shared cache.
func buildSources(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) ([]pipeline.SeriesSource, error) {
	river := pipeline.SeriesSource{
		Name:        domain.FieldLevel,
		Aggregation: domain.AggregateMean,
		Policy:      domain.FieldPolicy{Fill: cfg.LevelFill},
	}
	rain := pipeline.SeriesSource{
		Name:        domain.FieldPrecipitation,
		Aggregation: domain.AggregateSum,
		Policy:      domain.FieldPolicy{Fill: cfg.RainFill, Optional: true},
	}

	switch cfg.SourceMode {
	case config.SourceFile:
		river.Schema = domain.RiverLevelCSV()
		for _, path := range cfg.RiverFiles {
			river.Extractors = append(river.Extractors, file.NewExtractor(path, river.Schema))
		}
		rain.Schema = domain.INMETStationCSV()
		for _, path := range cfg.RainFiles {
			rain.Extractors = append(rain.Extractors, file.NewExtractor(path, rain.Schema))
		}
		logger.Info("reading local files", "river", cfg.RiverFiles, "rain", cfg.RainFiles)

	case config.SourceHTTP:
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.HTTPTimeout
		httpCfg.MaxRetries = cfg.ExtractRetries

		c := cache.New(cfg.SourceCacheSize, cfg.SourceCacheTTL, clockwork.NewRealClock(), metrics)
		today := domain.CalendarDate(domain.Now())

		river.Schema = domain.ANATelemetryCSV()
		anaClient := ana.NewClient(httpclient.New("ana", httpCfg, logger, metrics), cfg.ANABaseURL, river.Schema)
		rain.Schema = domain.INMETAPI()
		inmetClient := inmet.NewClient(httpclient.New("inmet", httpCfg, logger, metrics), cfg.INMETBaseURL)

		for _, r := range cfg.FetchRanges {
			closed := r.To.Before(today)
			river.Extractors = append(river.Extractors, c.Wrap(
				fmt.Sprintf("ana:%s:%s", cfg.RiverStation, r), ana.NewExtractor(anaClient, cfg.RiverStation, r), closed))
			rain.Extractors = append(rain.Extractors, c.Wrap(
				fmt.Sprintf("inmet:%s:%s", cfg.RainStation, r), inmet.NewExtractor(inmetClient, cfg.RainStation, r), closed))
		}
		logger.Info("fetching remote sources", "river_station", cfg.RiverStation,
			"rain_station", cfg.RainStation, "ranges", len(cfg.FetchRanges))

	default:
		return nil, fmt.Errorf("%w: unknown source mode %q", domain.ErrInvalidArgument, cfg.SourceMode)
	}
	return []pipeline.SeriesSource{river, rain}, nil
}
