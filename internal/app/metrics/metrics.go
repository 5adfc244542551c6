// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payroll_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroll_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payroll_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	connectOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroll_layer",
			Subsystem: "connect",
			Name:      "flows_total",
			Help:      "Total number of wallet connect flows by outcome.",
		},
		[]string{"outcome"},
	)

	payoutsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payroll_layer",
			Subsystem: "payroll",
			Name:      "payouts_recorded_total",
			Help:      "Total number of payout entries recorded by the runner.",
		},
	)
)

func init() {
	Registry.MustRegister(httpInFlight, httpRequests, httpDuration, connectOutcomes, payoutsRecorded)
}

// ObserveConnectFlow records a connect flow outcome ("ok" or the failing
// stage: "wallet", "network", "role", "session").
func ObserveConnectFlow(outcome string) {
	connectOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePayouts records payouts created by the payroll runner.
func ObservePayouts(n int) {
	payoutsRecorded.Add(float64(n))
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics. path should
// be a low-cardinality route label, not the raw URL.
func InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
