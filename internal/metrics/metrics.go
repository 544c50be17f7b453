// Package metrics exposes Prometheus collectors for the job crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerLinksTotal             *prometheus.CounterVec
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerFetchRetriesTotal      prometheus.Counter
	crawlerFetchDurationSeconds   prometheus.Histogram
	crawlerRateLimitDelaysSeconds prometheus.Histogram
	crawlerRunsTotal              *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_links_total",
				Help: "Result links classified, labeled by search term and classification.",
			},
			[]string{"term", "classification"},
		)

		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_pages_total",
				Help: "Search result pages processed, labeled by search term.",
			},
			[]string{"term"},
		)

		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_fetches_total",
				Help: "Detail page fetch attempts, labeled by status code or error.",
			},
			[]string{"status"},
		)

		crawlerFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_fetch_retries_total",
				Help: "Detail page fetches retried after a transient failure.",
			},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_fetch_duration_seconds",
				Help:    "Histogram of detail page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of waits imposed between successive fetches.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_runs_total",
				Help: "Crawl runs finished, labeled by final state.",
			},
			[]string{"state"},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLink counts one classified link.
func ObserveLink(term, classification string) {
	Init()
	crawlerLinksTotal.WithLabelValues(term, classification).Inc()
}

// ObservePage counts one processed result page.
func ObservePage(term string) {
	Init()
	crawlerPagesTotal.WithLabelValues(term).Inc()
}

// ObserveFetch records a fetch attempt. A zero code records an error.
func ObserveFetch(code int, duration time.Duration) {
	Init()
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	crawlerFetchesTotal.WithLabelValues(status).Inc()
	crawlerFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetchRetry counts a retried fetch.
func ObserveFetchRetry() {
	Init()
	crawlerFetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObserveRun counts a finished crawl run.
func ObserveRun(state string) {
	Init()
	crawlerRunsTotal.WithLabelValues(state).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
