package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_ingest_requests_total",
			Help: "Total number of inbound ingest requests by mode and response status",
		},
		[]string{"mode", "status"},
	)

	ForwardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_forward_requests_total",
			Help: "Total number of upstream forwards by outcome",
		},
		[]string{"outcome"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_dispatch_total",
			Help: "Total number of channel dispatches by provider type and outcome",
		},
		[]string{"type", "outcome"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_dispatch_duration_ms",
			Help:    "Channel dispatch duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"type"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_ratelimit_requests_total",
			Help: "Total number of rate limiter decisions",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		IngestRequestsTotal,
		ForwardRequestsTotal,
		DispatchTotal,
		DispatchDuration,
		RateLimitRequestsTotal,
	)
}

func ObserveDispatchDuration(channelType string, d time.Duration) {
	DispatchDuration.WithLabelValues(channelType).Observe(float64(d.Milliseconds()))
}
