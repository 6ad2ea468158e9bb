package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bimakw/dao-indexer/internal/application/services"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)

			path := normalizePath(r)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath uses the matched chi route pattern so path parameters
// (dao, metric, address) do not create one series per value
func normalizePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// IndexerMetrics exports the indexer's progress counters to Prometheus
type IndexerMetrics struct {
	BlocksIndexed    prometheus.CounterFunc
	EventsProcessed  prometheus.CounterFunc
	EventsSkipped    prometheus.CounterFunc
	LastIndexedBlock prometheus.GaugeFunc
	IndexingLatency  prometheus.GaugeFunc
	ErrorsTotal      prometheus.CounterFunc
}

// NewIndexerMetrics registers collectors that read snapshot on every scrape
func NewIndexerMetrics(snapshot func() services.IndexerMetrics) *IndexerMetrics {
	return &IndexerMetrics{
		BlocksIndexed: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "indexer_blocks_indexed_total",
			Help: "Total number of blocks indexed",
		}, func() float64 { return float64(snapshot().BlocksIndexed) }),
		EventsProcessed: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "indexer_events_processed_total",
			Help: "Total number of chain events applied",
		}, func() float64 { return float64(snapshot().EventsProcessed) }),
		EventsSkipped: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "indexer_events_skipped_total",
			Help: "Total number of duplicate or invalid chain events",
		}, func() float64 { return float64(snapshot().EventsSkipped) }),
		LastIndexedBlock: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "indexer_last_indexed_block",
			Help: "Last indexed block number",
		}, func() float64 { return float64(snapshot().LastIndexedBlock) }),
		IndexingLatency: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "indexer_indexing_latency_seconds",
			Help: "Time taken by the last indexing pass",
		}, func() float64 { return float64(snapshot().IndexingLatencyMs) / 1000 }),
		ErrorsTotal: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: "indexer_errors_total",
			Help: "Total number of indexing errors",
		}, func() float64 { return float64(snapshot().ErrorCount) }),
	}
}
