package accounting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dao_events_processed_total",
			Help: "Chain events handled by the accounting engine",
		},
		[]string{"dao", "kind", "reason"},
	)

	eventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dao_event_processing_seconds",
			Help:    "Time spent handling one chain event including its transaction",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"dao", "kind"},
	)

	negativeBalances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dao_negative_balance_total",
			Help: "Balance decrements that left an account below zero",
		},
		[]string{"dao"},
	)

	bucketObservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dao_bucket_observations_total",
			Help: "Observations folded into daily metric buckets",
		},
		[]string{"dao", "metric"},
	)

	lastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dao_last_processed_block",
			Help: "Block number of the most recently committed event",
		},
		[]string{"dao"},
	)
)
