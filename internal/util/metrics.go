package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveryChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_checks_total",
		Help: "Total number of delivery eligibility checks",
	}, []string{"outcome"})

	DeliveryCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_check_latency_seconds",
		Help:    "Latency of backend delivery eligibility calls",
		Buckets: prometheus.DefBuckets,
	})

	CartValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_validations_total",
		Help: "Total number of bulk cart delivery validations",
	}, []string{"outcome"})

	LocationUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "location_updates_total",
		Help: "Total number of location updates",
	}, []string{"source"})

	LocationDetectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "location_detect_failures_total",
		Help: "Total number of failed geolocation detections",
	}, []string{"reason"})

	StaleResponsesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_stale_responses_discarded_total",
		Help: "Eligibility responses discarded by the sequencing guard",
	})

	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of items added to carts",
	})

	CartMutationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_failed_total",
		Help: "Total number of rejected cart mutations",
	}, []string{"reason"})

	ConflictsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_conflicts_detected_total",
		Help: "Total number of warehouse conflicts detected",
	}, []string{"kind"})

	ConflictsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_conflicts_resolved_total",
		Help: "Total number of warehouse conflicts resolved",
	}, []string{"action"})

	ConflictsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_conflicts_suppressed_total",
		Help: "Location conflicts suppressed before evaluation",
	}, []string{"reason"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"tier"})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheSweepEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_sweep_evictions_total",
		Help: "Expired entries removed by the background sweep",
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
