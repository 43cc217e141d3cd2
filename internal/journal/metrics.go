package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	thoughtsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "journal",
		Name:      "thoughts_total",
		Help:      "Thoughts submitted, by outcome.",
	}, []string{"outcome"})

	secretsRedacted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "journal",
		Name:      "secrets_redacted_total",
		Help:      "Secrets removed from thoughts before analysis.",
	})

	archivedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "journal",
		Name:      "archived_sessions",
		Help:      "Sessions in the archive at the last read.",
	})

	sessionsImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "journal",
		Name:      "sessions_imported_total",
		Help:      "Sessions added by archive imports.",
	})
)
