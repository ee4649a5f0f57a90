// Package metrics exposes Prometheus instrumentation for pipeline runs and the HTTP endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline runs
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtm_runs_total",
			Help: "Pipeline runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // outcome "error" when the run returned an error
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtm_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trigger"},
	)

	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mtm_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run per trigger",
		},
		[]string{"trigger"},
	)

	// Notifications
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtm_emails_total",
			Help: "Report emails by result",
		},
		[]string{"result"}, // "sent", "failed"
	)

	// HTTP endpoint
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtm_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// RecordRun records a finished pipeline run.
func RecordRun(trigger, outcome string, duration time.Duration, err error) {
	if err != nil {
		outcome = "error"
	}
	RunsTotal.WithLabelValues(trigger, outcome).Inc()
	RunDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	LastRunTimestamp.WithLabelValues(trigger).SetToCurrentTime()
}

// RecordEmail records a report email attempt.
func RecordEmail(err error) {
	if err != nil {
		EmailsSent.WithLabelValues("failed").Inc()
		return
	}
	EmailsSent.WithLabelValues("sent").Inc()
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
