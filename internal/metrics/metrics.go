// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch kinds used as the "kind" label.
const (
	KindPage     = "page"
	KindDownload = "download"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nepjol_fetch_total",
			Help: "Total number of source fetches, labeled by kind, site and result.",
		},
		[]string{"kind", "site", "result"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nepjol_fetch_duration_seconds",
			Help:    "Histogram of source fetch latencies, labeled by kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nepjol_fetch_bytes_total",
			Help: "Total number of bytes fetched, labeled by kind.",
		},
		[]string{"kind"},
	)

	importItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nepjol_import_items_total",
			Help: "Total number of imported entities, labeled by entity and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nepjol_runs_total",
			Help: "Total number of import runs, labeled by final status.",
		},
		[]string{"status"},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nepjol_active_runs",
			Help: "Number of import runs currently executing.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nepjol_rate_limit_delay_seconds",
			Help:    "Histogram of pacing delays applied before source requests.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch or binary download.
func ObserveFetch(kind, rawURL string, ok bool, size int, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	fetchTotal.WithLabelValues(kind, SanitizeSite(rawURL), result).Inc()
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if size > 0 {
		fetchBytesTotal.WithLabelValues(kind).Add(float64(size))
	}
}

// ObserveItem increments the entity counter for the given outcome.
func ObserveItem(entity, outcome string) {
	importItemsTotal.WithLabelValues(entity, outcome).Inc()
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	activeRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	activeRuns.Dec()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
