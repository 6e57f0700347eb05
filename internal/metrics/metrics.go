// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package metrics holds the Prometheus collectors for Creditline.
//
// Everything is registered on the default registry through promauto and
// exposed by the server at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditline_upstream_requests_total",
			Help: "Requests sent to the credit-report API",
		},
		[]string{"endpoint", "status"}, // status: HTTP code or "error"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditline_upstream_request_duration_seconds",
			Help:    "Latency of credit-report API requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	UpstreamRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditline_upstream_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Workflow
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditline_workflow_runs_total",
			Help: "Report workflow runs by terminal state",
		},
		[]string{"outcome"}, // done, failed, cancelled
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditline_workflow_duration_seconds",
			Help:    "Wall time from submission to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 90, 120, 180, 300},
		},
		[]string{"outcome"},
	)

	WorkflowRenewals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditline_workflow_broker_renewals_total",
			Help: "Broker connections renewed after a rejected information submission",
		},
	)

	WorkflowsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "creditline_workflows_active",
			Help: "Workflow runs currently in progress",
		},
	)

	// Poller
	PollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditline_poll_attempts_total",
			Help: "Report file poll attempts by classification",
		},
		[]string{"result"}, // binary, link, not_ready, transport_error
	)

	PollAttemptsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditline_poll_attempts_per_run",
			Help:    "Attempts needed before the poller finished",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// Artifacts
	ArtifactsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "creditline_artifacts_stored",
			Help: "Report artifacts currently held in the artifact store",
		},
	)

	ArtifactBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditline_artifact_bytes",
			Help:    "Size of downloaded report artifacts",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
	)

	ArtifactsReleasedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditline_artifacts_released_total",
			Help: "Artifacts released from the store by reason",
		},
		[]string{"reason"}, // replaced, deleted, expired, shutdown
	)

	// HTTP surface (shell API and proxy)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditline_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditline_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	ProxyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditline_proxy_errors_total",
			Help: "Proxied requests that failed to reach the upstream",
		},
	)
)

// RecordUpstreamRequest records one exchange with the upstream API.
// status is 0 when no HTTP response was received.
func RecordUpstreamRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(endpoint, label).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordWorkflowFinished records a terminal workflow state.
func RecordWorkflowFinished(outcome string, duration time.Duration) {
	WorkflowRunsTotal.WithLabelValues(outcome).Inc()
	WorkflowDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPollAttempt records a single poll classification.
func RecordPollAttempt(result string) {
	PollAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordArtifactStored records a new artifact of the given size.
func RecordArtifactStored(size int) {
	ArtifactsStored.Inc()
	ArtifactBytes.Observe(float64(size))
}

// RecordArtifactReleased records an artifact leaving the store.
func RecordArtifactReleased(reason string) {
	ArtifactsStored.Dec()
	ArtifactsReleasedTotal.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(handler, method string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}
