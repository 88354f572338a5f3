// Package metrics holds the prometheus collectors shared by the engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	BatchRows        *prometheus.CounterVec
	ForecastDuration prometheus.Histogram
	PredictorCalls   *prometheus.CounterVec
	LoaderBatches    *prometheus.CounterVec
	StockMutations   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replenish",
			Name:      "batch_rows_total",
			Help:      "Batch transaction rows by kind and outcome.",
		}, []string{"kind", "status"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "replenish",
			Name:      "forecast_duration_seconds",
			Help:      "Wall time of a full forecast horizon.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		PredictorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replenish",
			Name:      "predictor_calls_total",
			Help:      "Predictor invocations by result.",
		}, []string{"result"}),
		LoaderBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replenish",
			Name:      "loader_batches_total",
			Help:      "Initial load batches by collection and result.",
		}, []string{"collection", "result"}),
		StockMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replenish",
			Name:      "stock_mutations_total",
			Help:      "Single-record sale and receipt transactions by result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.BatchRows, m.ForecastDuration, m.PredictorCalls, m.LoaderBatches, m.StockMutations)
	}
	return m
}
