// Package observability provides metrics and tracing for the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts write-path outcomes by result
	// (published, blocked, denied, rejected, failed).
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corkboard_posts_created_total",
		Help: "Total write-path requests by outcome",
	}, []string{"outcome"})

	// ModerationVerdicts counts moderation decisions by verdict and source
	// (classifier or fallback).
	ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corkboard_moderation_verdicts_total",
		Help: "Total moderation verdicts by verdict and source",
	}, []string{"verdict", "source"})

	// GeocodeFailures counts reverse-geocoding failures.
	GeocodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corkboard_geocode_failures_total",
		Help: "Total reverse-geocoding failures",
	})

	// FeedQueries counts read-path queries by filter strategy.
	FeedQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corkboard_feed_queries_total",
		Help: "Total feed queries by spatial filter strategy",
	}, []string{"strategy"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corkboard_redis_error_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corkboard_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)
