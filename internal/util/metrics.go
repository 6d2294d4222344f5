package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sync_attempts_total",
		Help: "Total number of recorded sync attempts",
	}, []string{"status", "trigger"})

	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sync_failures_total",
		Help: "Total number of failed sync attempts",
	}, []string{"reason"})

	SyncDeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_sync_delivery_latency_seconds",
		Help:    "Latency of webhook deliveries",
		Buckets: prometheus.DefBuckets,
	})

	SyncJobsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sync_jobs_dispatched_total",
		Help: "Total number of sync jobs published to the queue",
	}, []string{"trigger"})

	SyncJobsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sync_jobs_skipped_total",
		Help: "Total number of sync jobs skipped before delivery",
	}, []string{"reason"})

	SyncLogsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_sync_logs_purged_total",
		Help: "Total number of sync log rows deleted by purges",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
