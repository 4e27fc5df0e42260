package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the monitoring core.
// Components accept a nil *Metrics and skip recording.
type Metrics struct {
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	CacheEvictions      prometheus.Counter
	AlertsTriggered     *prometheus.CounterVec
	RefreshRuns         *prometheus.CounterVec
	NotificationsShown  prometheus.Counter
	NotificationsQueued prometheus.Counter
}

// New initializes and registers the Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of metric cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of metric cache misses.",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of entries evicted from the metric cache.",
		}),
		AlertsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of alerts created, by severity.",
		}, []string{"severity"}),
		RefreshRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh job runs, by result.",
		}, []string{"result"}), // result: success, failure, skipped
		NotificationsShown: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "notifications",
			Name:      "shown_total",
			Help:      "Total number of notifications admitted to the visible set.",
		}),
		NotificationsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashmon",
			Subsystem: "notifications",
			Name:      "queued_total",
			Help:      "Total number of notifications placed in the backlog.",
		}),
	}
}
