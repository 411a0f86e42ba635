package review

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bibwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	reviewsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bibwatch_review_images_served_total",
			Help: "Images handed to a reviewer",
		},
	)

	reviewSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibwatch_review_submissions_total",
			Help: "Manual submissions by outcome",
		},
		[]string{"outcome"}, // ok, invalid, unknown, conflict
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bibwatch_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)
