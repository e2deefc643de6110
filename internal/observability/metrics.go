package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydro_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PipelineRuns    *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Parse metrics, labelled by series.
	RowsParsed   *prometheus.CounterVec
	RowsDropped  *prometheus.CounterVec
	ValuesAbsent *prometheus.CounterVec
	DatasetDays  prometheus.Gauge

	// Lag analysis, labelled by period.
	BestLag         *prometheus.GaugeVec
	BestCoefficient *prometheus.GaugeVec

	// Remote source metrics.
	SourceRequests *prometheus.CounterVec   // labels: source, outcome={success,error,open}
	SourceDuration *prometheus.HistogramVec // labels: source
	SourceCache    *prometheus.CounterVec   // labels: result={hit,miss}

	MessagesProduced prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-analyze-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Raw data rows examined by series.",
		}, []string{"series"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows rejected for an unparsable timestamp by series.",
		}, []string{"series"}),
		ValuesAbsent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_absent_total",
			Help:      "Rows kept with an unparsable value by series.",
		}, []string{"series"}),
		DatasetDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_days",
			Help:      "Calendar days in the last aligned dataset.",
		}),
		BestLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_lag_days",
			Help:      "Best rainfall accumulation lag per analysis period.",
		}, []string{"period"}),
		BestCoefficient: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_lag_coefficient",
			Help:      "Pearson coefficient at the best lag per analysis period.",
		}, []string{"period"}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Remote source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Remote source request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Source cache lookups by result.",
		}, []string{"result"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total messages written to Kafka.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRuns,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.RowsParsed,
		m.RowsDropped,
		m.ValuesAbsent,
		m.DatasetDays,
		m.BestLag,
		m.BestCoefficient,
		m.SourceRequests,
		m.SourceDuration,
		m.SourceCache,
		m.MessagesProduced,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
