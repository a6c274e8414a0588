package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the estimation service collectors
type Metrics struct {
	// EstimationsTotal counts runs by method (psm, dml) and result code
	EstimationsTotal *prometheus.CounterVec

	// EstimationDuration tracks run latency by method
	EstimationDuration *prometheus.HistogramVec

	// DatasetRows tracks request sizes by method
	DatasetRows *prometheus.HistogramVec

	// MatchedPairs tracks surviving treated-side pairs per PSM run
	MatchedPairs prometheus.Histogram

	// InFlight is the number of admitted estimations
	InFlight prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EstimationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gocausal_estimations_total",
			Help: "Total estimation runs by method and result",
		}, []string{"method", "result"}),
		EstimationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gocausal_estimation_duration_seconds",
			Help:    "Estimation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"method"}),
		DatasetRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gocausal_dataset_rows",
			Help:    "Rows per estimation request",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		}, []string{"method"}),
		MatchedPairs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gocausal_psm_matched_pairs",
			Help:    "Treated-side matched pairs per PSM run",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gocausal_estimations_in_flight",
			Help: "Estimations currently running",
		}),
	}
}

// Observe records one finished run
func (m *Metrics) Observe(method, result string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EstimationsTotal.WithLabelValues(method, result).Inc()
	m.EstimationDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	m.DatasetRows.WithLabelValues(method).Observe(float64(rows))
}
