package metrics

import "github.com/prometheus/client_golang/prometheus"

// Dispatch Prometheus metrics.
var (
	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knowd",
			Name:      "dispatch_requests_total",
			Help:      "Total number of dispatched tool invocations",
		},
		[]string{"tool", "status"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knowd",
			Name:      "dispatch_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30},
		},
		[]string{"tool"},
	)

	DispatchBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "knowd",
			Name:      "dispatch_batch_size",
			Help:      "Number of items per batch request",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)
)

var dispatchMetricsRegistered bool

// RegisterDispatchMetrics registers Prometheus dispatch metrics. Must be called once from main.
func RegisterDispatchMetrics() {
	if dispatchMetricsRegistered {
		return
	}
	prometheus.MustRegister(DispatchRequestsTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(DispatchBatchSize)
	dispatchMetricsRegistered = true
}
