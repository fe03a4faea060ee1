// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "search_duration_seconds",
			Help: "Duration of search computation in seconds",
		},
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of searches served from a fresh cache entry",
		},
	)

	SearchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Total number of searches requiring computation",
		},
	)

	SearchCoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_coalesced_requests_total",
			Help: "Total number of requests that joined an in-flight computation",
		},
	)

	RecordingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_recording_failures_total",
			Help: "Total number of history/trend/metric write failures",
		},
		[]string{"store"},
	)

	TrendingUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_trending_updates_total",
			Help: "Total number of trending term increments",
		},
	)
)
