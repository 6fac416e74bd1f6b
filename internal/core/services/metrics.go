package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Name:      "tool_catalog_lookups_total",
			Help:      "Tool catalog lookups by cache result",
		},
		[]string{"result"}, // "hit", "stale", "miss", "error"
	)

	catalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostelscout",
			Name:      "tool_catalog_size",
			Help:      "Number of tools in the last fetched catalog",
		},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Name:      "searches_total",
			Help:      "Finished searches by outcome",
		},
		[]string{"mode", "outcome", "detail"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostelscout",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
		},
		[]string{"outcome"},
	)

	searchResultsCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hostelscout",
			Name:      "search_results_count",
			Help:      "Number of normalized records returned per found search",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20, 50},
		},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Name:      "tool_calls_total",
			Help:      "Remote tool invocations by status",
		},
		[]string{"tool", "status"},
	)

	sortPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Name:      "sort_passes_total",
			Help:      "Ranking completion calls by result",
		},
		[]string{"result"}, // "sorted", "fallback", "rate_limited", "failed"
	)

	searchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostelscout",
			Name:      "searches_in_flight",
			Help:      "Searches currently holding a concurrency slot",
		},
	)
)
