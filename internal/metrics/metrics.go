// Package metrics exposes Prometheus collectors for the jobscout service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapeRunsTotal            *prometheus.CounterVec
	postingsScrapedTotal       *prometheus.CounterVec
	postingsInsertedTotal      prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_scrape_runs_total",
				Help: "Total number of scrape runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		postingsScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_postings_scraped_total",
				Help: "Total number of raw postings returned by sources, labeled by site.",
			},
			[]string{"site"},
		)

		postingsInsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscout_postings_inserted_total",
				Help: "Total number of postings newly inserted into the database.",
			},
		)
	})
}

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncScrapeRun counts one scrape run with the given outcome ("ok"/"error").
func IncScrapeRun(status string) {
	Init()
	scrapeRunsTotal.WithLabelValues(status).Inc()
}

// AddPostingsScraped counts raw postings returned by a source.
func AddPostingsScraped(site string, n int) {
	Init()
	if n > 0 {
		postingsScrapedTotal.WithLabelValues(site).Add(float64(n))
	}
}

// AddPostingsInserted counts newly inserted postings.
func AddPostingsInserted(n int) {
	Init()
	if n > 0 {
		postingsInsertedTotal.Add(float64(n))
	}
}
