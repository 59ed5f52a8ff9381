// Package metrics exposes Prometheus collectors for the announcer.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	entriesTotal               *prometheus.CounterVec
	webhookDeliveriesTotal     *prometheus.CounterVec
	webhookRateLimitWait       prometheus.Histogram
	outboundRequestsTotal      *prometheus.CounterVec
	outboundRequestDuration    *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locbot_runs_total",
				Help: "Total number of announcer runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "locbot_run_duration_seconds",
				Help:    "Histogram of end-to-end run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		entriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locbot_entries_total",
				Help: "Entries seen by the change detector, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		webhookDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locbot_webhook_deliveries_total",
				Help: "Webhook delivery attempts, labeled by result.",
			},
			[]string{"result"},
		)

		webhookRateLimitWait = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "locbot_webhook_rate_limit_wait_seconds",
				Help:    "Histogram of retry_after waits imposed by the webhook.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		outboundRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locbot_outbound_requests_total",
				Help: "Outbound HTTP requests, labeled by host, method and code.",
			},
			[]string{"host", "method", "code"},
		)

		outboundRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "locbot_outbound_request_duration_seconds",
				Help:    "Histogram of outbound HTTP latencies, labeled by host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
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

// SanitizeHost extracts a lowercase hostname from a URL so secrets in paths
// never become label values. It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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

// ObserveRun records the outcome and duration of one run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveEntries adds n entries with the given detector outcome.
func ObserveEntries(outcome string, n int) {
	Init()
	if n > 0 {
		entriesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveWebhookDelivery counts one webhook POST by result.
func ObserveWebhookDelivery(result string) {
	Init()
	webhookDeliveriesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitWait records a retry_after sleep.
func ObserveRateLimitWait(d time.Duration) {
	Init()
	webhookRateLimitWait.Observe(d.Seconds())
}

// ObserveOutbound records one outbound request. A zero code means the
// request failed before a response arrived.
func ObserveOutbound(rawURL, method string, code int, duration time.Duration) {
	Init()
	host := SanitizeHost(rawURL)
	outboundRequestsTotal.WithLabelValues(host, method, strconv.Itoa(code)).Inc()
	outboundRequestDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the inbound HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
