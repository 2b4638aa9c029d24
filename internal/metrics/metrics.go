// Package metrics exposes Prometheus collectors for the volume scraper.
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

// Scrape outcome labels.
const (
	OutcomeInserted     = "inserted"
	OutcomeUnchanged    = "unchanged"
	OutcomeExtractError = "extract_error"
	OutcomeStoreError   = "store_error"
)

var (
	scrapesTotal               *prometheus.CounterVec
	readingsInsertedTotal      prometheus.Counter
	scrapeDurationSeconds      *prometheus.HistogramVec
	lastTotalVolume            prometheus.Gauge
	sideEffectFailuresTotal    *prometheus.CounterVec
	rateLimitDelaySeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volume_scrapes_total",
				Help: "Total number of scrape cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		readingsInsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "volume_readings_inserted_total",
				Help: "Total number of readings appended to the store.",
			},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volume_scrape_duration_seconds",
				Help:    "Histogram of extraction latencies, labeled by extractor.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"extractor"},
		)

		lastTotalVolume = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "volume_last_total_volume",
				Help: "Total volume of the most recently inserted reading.",
			},
		)

		sideEffectFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volume_side_effect_failures_total",
				Help: "Archive and publish failures that did not fail the scrape.",
			},
			[]string{"kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "volume_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting for the source rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 20},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveScrape records one scrape cycle.
func ObserveScrape(outcome string) {
	Init()
	scrapesTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records how long an extraction took.
func ObserveExtraction(headless bool, duration time.Duration) {
	Init()
	label := "static"
	if headless {
		label = "headless"
	}
	scrapeDurationSeconds.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveInsert counts an appended reading and tracks its total volume when present.
func ObserveInsert(totalVolume *int64) {
	Init()
	readingsInsertedTotal.Inc()
	if totalVolume != nil {
		lastTotalVolume.Set(float64(*totalVolume))
	}
}

// ObserveSideEffectFailure counts a failed archive or publish step.
func ObserveSideEffectFailure(kind string) {
	Init()
	sideEffectFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records a wait imposed by the source rate limiter.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
