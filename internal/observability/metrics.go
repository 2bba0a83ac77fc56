package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "receiptscan",
		Name:      "operations_total",
		Help:      "Receipt operations by outcome (ok or error kind)",
	}, []string{"operation", "outcome"})

	DetectionsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "receiptscan",
		Name:      "detections_stored_total",
		Help:      "Total number of text detections persisted",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "receiptscan",
		Name:      "stage_duration_seconds",
		Help:      "Duration of submission stages against external services",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"stage"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "receiptscan",
		Name:      "events_published_total",
		Help:      "Receipt events published to NATS",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "receiptscan",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "receiptscan",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
