// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListEventsTotal counts aggregator updates by event kind.
	ListEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listwise_list_events_total",
			Help: "Total number of list events applied to affinity records",
		},
		[]string{"kind"},
	)

	// FactorizationDuration tracks how long one factorization run takes.
	FactorizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listwise_factorization_duration_seconds",
			Help:    "Duration of latent-factor factorization runs in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	PredictionCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listwise_prediction_cache_hits_total",
			Help: "Total number of prediction cache hits",
		},
	)

	PredictionCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listwise_prediction_cache_misses_total",
			Help: "Total number of prediction cache misses",
		},
	)

	// EmptySelectionsTotal counts suggestion requests that ended with nothing to offer.
	EmptySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listwise_empty_selections_total",
			Help: "Total number of selections with no qualifying recommendation",
		},
		[]string{"source"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listwise_events_published_total",
			Help: "Total number of affinity events handed to the broker",
		},
		[]string{"status"},
	)
)
