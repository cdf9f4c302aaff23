package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors updated by a Runner
type Metrics struct {
	transitions  prometheus.Counter
	activeChains prometheus.Gauge
	latency      prometheus.Histogram
}

// NewMetrics registers the runner collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "dgibbs_transitions_total",
			Help: "Total Diffusive Gibbs transitions performed",
		}),
		activeChains: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dgibbs_active_chains",
			Help: "Chains currently running",
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dgibbs_transition_seconds",
			Help:    "Latency of a single transition",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}
