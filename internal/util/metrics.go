package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_token_refreshes_total",
		Help: "Total number of credential exchanges performed",
	})

	TokenRefreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_token_refresh_failures_total",
		Help: "Total number of failed credential exchanges",
	}, []string{"reason"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_upstream_requests_total",
		Help: "Total number of requests to the POS API",
	}, []string{"endpoint", "status"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_upstream_request_duration_seconds",
		Help:    "Latency of POS API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	OrderPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_order_pages_fetched_total",
		Help: "Total number of bulk order pages fetched",
	})

	OrdersFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_orders_fetched_total",
		Help: "Total number of raw orders fetched",
	})

	LineItemsFlattenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_line_items_flattened_total",
		Help: "Total number of line items emitted by the flattener",
	})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_queries_total",
		Help: "Total number of analytical queries",
	}, []string{"operation", "status"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_query_duration_seconds",
		Help:    "End-to-end latency of analytical queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	MenuCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_cache_hits_total",
		Help: "Total number of menu lookups served from cache",
	})

	MenuCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_cache_misses_total",
		Help: "Total number of menu lookups that fell back to the POS API",
	})

	QueryEventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "query_events_published_total",
		Help: "Total number of query completion events published",
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
