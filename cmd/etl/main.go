package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/hydro-lag-etl/internal/adapter/export"
	httpadapter "github.com/couchcryptid/hydro-lag-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hydro-lag-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-lag-etl/internal/config"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
	"github.com/couchcryptid/hydro-lag-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sources, err := buildSources(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to configure sources", "error", err)
		return 1
	}

	loaders := []pipeline.Loader{export.NewFileLoader(cfg.OutputDir, export.DefaultOptions(), cfg.OutputXLSX, logger)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers,
			"dataset_topic", cfg.KafkaDatasetTopic, "summary_topic", cfg.KafkaSummaryTopic)
	}

	p := pipeline.New(sources, analysis(cfg), loaders, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	if cfg.RefreshInterval == 0 {
		if _, err := p.Run(ctx); err != nil {
			code = 1
		}
	} else if err := serve(ctx, cfg, p, logger); err != nil {
		logger.Error("failed to schedule pipeline", "error", err)
		code = 1
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
	return code
}

// serve runs the pipeline every refresh interval and exposes the HTTP
// endpoints until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	_, err := scheduler.Every(cfg.RefreshInterval).Do(func() {
		if _, err := p.Run(ctx); errors.Is(err, pipeline.ErrRunInProgress) {
			logger.Warn("skipping scheduled run", "error", err)
		}
	})
	if err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	scheduler.StartAsync()
	logger.Info("pipeline scheduled", "interval", cfg.RefreshInterval)

	<-ctx.Done()
	logger.Info("shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return nil
}

func analysis(cfg *config.Config) pipeline.Analysis {
	return pipeline.Analysis{
		Driver:         domain.FieldPrecipitation,
		Response:       domain.FieldLevel,
		MaxLag:         cfg.MaxLag,
		FloodThreshold: cfg.FloodThreshold,
		Periods:        cfg.Periods,
	}
}
