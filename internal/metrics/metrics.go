// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planyard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	VersionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planyard_versions_created_total",
			Help: "Project and schedule versions created",
		},
		[]string{"kind"}, // project, schedule
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planyard_notifications_sent_total",
			Help: "Chat notifications attempted, by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	DigestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planyard_digest_runs_total",
			Help: "Daily digest runs by outcome",
		},
		[]string{"status"}, // sent, empty, failed
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementVersionCreated(kind string) {
	VersionsCreated.WithLabelValues(kind).Inc()
}

func IncrementNotification(platform, status string) {
	NotificationsSent.WithLabelValues(platform, status).Inc()
}

func IncrementDigestRun(status string) {
	DigestRuns.WithLabelValues(status).Inc()
}
