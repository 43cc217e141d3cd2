package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cortex",
		Subsystem: "analysis",
		Name:      "request_duration_seconds",
		Help:      "Latency of analysis service calls including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "analysis",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	})
)

func observeRequest(op, outcome string, start time.Time) {
	requestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}
