// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts admin API requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchain_http_requests_total",
			Help: "Total number of http requests handled by the admin API.",
		},
		[]string{"path", "method", "code"},
	)

	// DispatchTotal counts handled records by kind and outcome label (sent, failed, skipped_<reason>).
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchain_dispatch_total",
			Help: "Total number of created records handled by the dispatcher.",
		},
		[]string{"kind", "outcome"},
	)

	// SendDuration observes push transport latency.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskchain_send_duration_seconds",
			Help:    "Latency of push transport send calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "result"},
	)

	// RecipientCacheTotal counts recipient cache lookups by result (hit, miss, error).
	RecipientCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchain_recipient_cache_total",
			Help: "Recipient lookup cache results.",
		},
		[]string{"result"},
	)

	// Reminders reports reminder counts by state as of the last audit run.
	Reminders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchain_reminders",
			Help: "Stored reminders by dispatch state (pending, sent, failed).",
		},
		[]string{"state"},
	)

	// IsLeader is 1 while this node holds leadership.
	IsLeader = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchain_is_leader",
			Help: "Is this node currently the leader. 1 if leader, 0 otherwise.",
		},
		[]string{"node_id"},
	)
)
