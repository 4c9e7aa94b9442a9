// Package observability holds Prometheus collectors and OpenTelemetry tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blog_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by cache name and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	// PostViewsTotal counts detail views that incremented a post's view counter.
	PostViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_post_views_total",
		Help: "Total number of counted post detail views",
	})

	// LikesToggledTotal counts like toggles by resulting state.
	LikesToggledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_likes_toggled_total",
		Help: "Total number of like toggles by resulting state",
	}, []string{"state"})

	// CommentsCreatedTotal counts created comments by approval state.
	CommentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_comments_created_total",
		Help: "Total number of comments created",
	}, []string{"approved"})

	// PostsPublishedTotal counts posts that received their first publication timestamp.
	PostsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_posts_published_total",
		Help: "Total number of posts published",
	})

	// NotificationsTotal counts notifications by type and delivery outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_notifications_total",
		Help: "Notifications created by type and delivery outcome",
	}, []string{"type", "outcome"})

	// WebSocketConnectionsTotal is the gauge of open notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blog_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client's send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
