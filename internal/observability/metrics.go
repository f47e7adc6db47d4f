package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_rain"

// Metrics holds the Prometheus counters, histograms, and gauges for the storm pipeline.
type Metrics struct {
	ObservationsNormalized  *prometheus.CounterVec // labels: src
	ObservationsQuarantined *prometheus.CounterVec // labels: src
	DatesProcessed          prometheus.Counter
	DegenerateDates         prometheus.Counter
	LoadsCompleted          *prometheus.CounterVec // labels: sink={file,sql,kafka}

	// Run lifecycle metrics.
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	LastSuccessTime prometheus.Gauge
	PipelineRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_normalized_total",
			Help:      "Gauge readings converted to canonical observations, by source.",
		}, []string{"src"}),
		ObservationsQuarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_quarantined_total",
			Help:      "Cumulative readings flagged as resets, by source.",
		}, []string{"src"}),
		DatesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_processed_total",
			Help:      "Storm dates evaluated.",
		}),
		DegenerateDates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_dates_total",
			Help:      "Storm dates without a computable storm window.",
		}),
		LoadsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_completed_total",
			Help:      "Run results persisted, by sink.",
		}, []string{"sink"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract, analyze, and load run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsNormalized,
		m.ObservationsQuarantined,
		m.DatesProcessed,
		m.DegenerateDates,
		m.LoadsCompleted,
		m.Runs,
		m.RunDuration,
		m.LastSuccessTime,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
