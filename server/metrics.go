package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canter_feed_requests_total",
		Help: "Feed page requests by feed kind and response status",
	}, []string{"kind", "status"})

	feedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "canter_feed_request_duration_seconds",
		Help:    "Feed page assembly latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // Start at 1ms, double each bucket, 12 buckets
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canter_rate_limited_requests_total",
		Help: "Requests rejected by the fixed-window rate limiter",
	})
)
