// Package metrics holds the Prometheus collectors of cv-matcher. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cv_matcher"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	fetchTotal       *prometheus.CounterVec
	fetchedPostings  prometheus.Counter
	matchTotal       *prometheus.CounterVec
	matchDuration    prometheus.Histogram
	rankedPostings   prometheus.Histogram
	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "fetch_total",
			Help:      "Job search units by status.",
		},
		[]string{"status"},
	)
	fetchedPostings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "postings_total",
			Help:      "Postings returned by the job search provider.",
		},
	)
	matchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "runs_total",
			Help:      "Résumé match runs by status.",
		},
		[]string{"status"},
	)
	matchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "duration_seconds",
			Help:      "Duration of a résumé match run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	rankedPostings := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "ranked_postings",
			Help:      "Postings returned per successful match run.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 50},
		},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		fetchTotal,
		fetchedPostings,
		matchTotal,
		matchDuration,
		rankedPostings,
		requestTotal,
		requestDuration,
		requestsInFlight,
	)

	return &Metrics{
		registry:         registry,
		fetchTotal:       fetchTotal,
		fetchedPostings:  fetchedPostings,
		matchTotal:       matchTotal,
		matchDuration:    matchDuration,
		rankedPostings:   rankedPostings,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestsInFlight: requestsInFlight,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch counts one search unit and the postings it returned.
func (m *Metrics) RecordFetch(err error, postings int) {
	if m == nil {
		return
	}
	if err != nil {
		m.fetchTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.fetchTotal.WithLabelValues(StatusOK).Inc()
	m.fetchedPostings.Add(float64(postings))
}

func (m *Metrics) RecordMatch(err error, duration time.Duration, ranked int) {
	if m == nil {
		return
	}
	m.matchDuration.Observe(duration.Seconds())
	if err != nil {
		m.matchTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.matchTotal.WithLabelValues(StatusOK).Inc()
	m.rankedPostings.Observe(float64(ranked))
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

func (m *Metrics) RequestFinished(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
