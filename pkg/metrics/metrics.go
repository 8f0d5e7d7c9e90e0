// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ItemsFetchedTotal    *prometheus.CounterVec
	FeedErrorsTotal      *prometheus.CounterVec
	ItemsStoredTotal     *prometheus.CounterVec
	DuplicatesTotal      *prometheus.CounterVec
	DedupCacheHits       prometheus.Counter
	DedupCacheMisses     prometheus.Counter
	DedupStoreQueries    prometheus.Counter
	EnrichmentTotal      *prometheus.CounterVec
	EnrichmentQuotaUsed  prometheus.Gauge
	NewsServedTotal      *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ItemsFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_items_fetched_total",
				Help: "Total feed entries fetched by vertical and source.",
			},
			[]string{"vertical", "source"},
		),
		FeedErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_fetch_errors_total",
				Help: "Total feed fetch failures by vertical and source.",
			},
			[]string{"vertical", "source"},
		),
		ItemsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_items_stored_total",
				Help: "Total news items persisted by vertical.",
			},
			[]string{"vertical"},
		),
		DuplicatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_items_duplicate_total",
				Help: "Total news items skipped as duplicates by vertical.",
			},
			[]string{"vertical"},
		),
		DedupCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_cache_hits_total",
				Help: "Duplicate gate in-memory cache hits.",
			},
		),
		DedupCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_cache_misses_total",
				Help: "Duplicate gate in-memory cache misses.",
			},
		),
		DedupStoreQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_store_queries_total",
				Help: "Duplicate gate durable store lookups.",
			},
		),
		EnrichmentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_items_total",
				Help: "AI enrichment outcomes by status (success, failure, skipped).",
			},
			[]string{"status"},
		),
		EnrichmentQuotaUsed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrichment_daily_quota_used",
				Help: "Analysis provider requests used today.",
			},
		),
		NewsServedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_served_total",
				Help: "News items returned to callers by vertical and tier.",
			},
			[]string{"vertical", "tier"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ItemsFetchedTotal,
		m.FeedErrorsTotal,
		m.ItemsStoredTotal,
		m.DuplicatesTotal,
		m.DedupCacheHits,
		m.DedupCacheMisses,
		m.DedupStoreQueries,
		m.EnrichmentTotal,
		m.EnrichmentQuotaUsed,
		m.NewsServedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
