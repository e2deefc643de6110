package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// ErrRunInProgress is returned by Run while another run is executing.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Extractor produces one raw table, such as one file or one year of remote data.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawTable, error)
}

// Loader publishes a completed report.
type Loader interface {
	Load(ctx context.Context, rep domain.Report) error
}

// SeriesSource describes how to assemble one daily series from raw tables.
type SeriesSource struct {
	Name        string
	Schema      domain.Schema
	Aggregation domain.Aggregation
	Policy      domain.FieldPolicy
	Extractors  []Extractor
}

// Analysis holds the parameters of the lag and period analysis.
type Analysis struct {
	Driver         string // accumulated series, rainfall
	Response       string // correlated series, river level
	MaxLag         int
	FloodThreshold float64
	Periods        []domain.Period
}

// Pipeline orchestrates the extract-analyze-load run.
type Pipeline struct {
	sources  []SeriesSource
	analysis Analysis
	loaders  []Loader
	logger   *slog.Logger
	metrics  *observability.Metrics

	loadRetries int
	running     sync.Mutex
	ready       atomic.Bool
	latest      atomic.Pointer[domain.Report]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoadRetries sets how many times a failed load is retried with backoff.
func WithLoadRetries(n int) Option {
	return func(p *Pipeline) { p.loadRetries = n }
}

// New creates a Pipeline with the given stages and observability.
func New(sources []SeriesSource, analysis Analysis, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:     sources,
		analysis:    analysis,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		loadRetries: 3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Latest returns the report of the last successful run.
func (p *Pipeline) Latest() (domain.Report, bool) {
	rep := p.latest.Load()
	if rep == nil {
		return domain.Report{}, false
	}
	return *rep, true
}

// Run executes one complete extract-analyze-load cycle. Runs do not overlap;
// a call made while another run executes returns ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context) (domain.Report, error) {
	if !p.running.TryLock() {
		return domain.Report{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline run started", "sources", len(p.sources), "periods", len(p.analysis.Periods))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	start := time.Now()

	rep, err := p.run(ctx, runID, logger)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "error", err)
		return rep, err
	}

	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	p.latest.Store(&rep)
	p.ready.Store(true)
	logger.Info("pipeline run complete", "days", rep.Dataset.Len(), "duration", time.Since(start))
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *slog.Logger) (domain.Report, error) {
	rep := domain.Report{RunID: runID, GeneratedAt: domain.Now()}

	series, stats, err := p.buildSeries(ctx, logger)
	rep.Sources = stats
	if err != nil {
		return rep, err
	}

	policies := make(map[string]domain.FieldPolicy, len(p.sources))
	for _, src := range p.sources {
		policies[src.Name] = src.Policy
	}
	ds, err := domain.Align(series, policies)
	if err != nil {
		return rep, fmt.Errorf("align: %w", err)
	}
	rep.Dataset = ds
	p.metrics.DatasetDays.Set(float64(ds.Len()))

	if err := p.analyze(&rep, logger); err != nil {
		return rep, err
	}
	if err := p.load(ctx, rep, logger); err != nil {
		return rep, err
	}
	return rep, nil
}

// analyze fills the overall and per-period reports of rep.
func (p *Pipeline) analyze(rep *domain.Report, logger *slog.Logger) error {
	a := p.analysis
	overall, err := domain.AnalyzePeriod(rep.Dataset, domain.Period{Name: "all"}, a.Response, a.Driver, a.MaxLag, a.FloodThreshold)
	if err != nil {
		return fmt.Errorf("analyze dataset: %w", err)
	}
	rep.Overall = overall
	p.observePeriod(overall, logger)

	for _, period := range a.Periods {
		pr, err := domain.AnalyzePeriod(rep.Dataset, period, a.Response, a.Driver, a.MaxLag, a.FloodThreshold)
		if err != nil {
			return fmt.Errorf("analyze period %s: %w", period.Name, err)
		}
		rep.Periods = append(rep.Periods, pr)
		p.observePeriod(pr, logger)
	}

	for i := 1; i < len(rep.Periods); i++ {
		prev, cur := rep.Periods[i-1], rep.Periods[i]
		if prev.Summary == nil || cur.Summary == nil {
			continue
		}
		rep.Comparisons = append(rep.Comparisons, domain.Compare(prev.Name, *prev.Summary, cur.Name, *cur.Summary))
	}
	return nil
}

func (p *Pipeline) observePeriod(pr domain.PeriodReport, logger *slog.Logger) {
	if pr.Lag == nil || pr.Lag.Best == nil {
		logger.Warn("no lag result for period", "period", pr.Name, "status", pr.Status, "reason", pr.Reason)
		p.metrics.BestLag.DeleteLabelValues(pr.Name)
		p.metrics.BestCoefficient.DeleteLabelValues(pr.Name)
		return
	}
	best := pr.Lag.Best
	p.metrics.BestLag.WithLabelValues(pr.Name).Set(float64(best.Lag))
	p.metrics.BestCoefficient.WithLabelValues(pr.Name).Set(best.Coefficient)
	logger.Info("lag analysis", "period", pr.Name, "best_lag", best.Lag,
		"coefficient", best.Coefficient, "samples", best.Samples, "lags_defined", len(pr.Lag.Scores))
}

// load hands the report to every loader, retrying each with exponential
// backoff: start at 200ms, double each retry, cap at 5s.
func (p *Pipeline) load(ctx context.Context, rep domain.Report, logger *slog.Logger) error {
	const maxBackoff = 5 * time.Second
	for _, l := range p.loaders {
		backoff := 200 * time.Millisecond
		for attempt := 0; ; attempt++ {
			err := l.Load(ctx, rep)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= p.loadRetries {
				return fmt.Errorf("load: %w", err)
			}
			logger.Error("load failed, retrying", "error", err, "attempt", attempt+1, "backoff", backoff)
			if !sleepWithContext(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
