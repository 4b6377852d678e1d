package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "travel_matching"

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "searches_total", Help: "Total listing searches served"})
	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "search_latency_seconds", Help: "Listing search latency seconds"})

	MatchesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "matches_found_total", Help: "Recipients matched on post, by trigger"},
		[]string{"trigger"},
	)
	NotificationsCreated      = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_created_total", Help: "Notification records persisted"})
	NotificationsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_deduplicated_total", Help: "Alerts suppressed as duplicates"})
	PushFailures              = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "push_failures_total", Help: "Push deliveries that failed or timed out"})
	PushSessions              = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "push_sessions", Help: "Open websocket push sessions"})

	ConfirmationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "confirmation_transitions_total", Help: "Confirmation state changes by resulting status"},
		[]string{"status"},
	)
	CapacityConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "capacity_conflicts_total", Help: "Accepts or reversals refused for lack of seats"})

	SweepRows = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sweep_rows_total", Help: "Rows changed by the expiry sweep, by action"},
		[]string{"action"},
	)
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "sweep_duration_seconds", Help: "Expiry sweep duration seconds"})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Domain events written to Kafka, by type and outcome"},
		[]string{"type", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
