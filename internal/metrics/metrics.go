// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package metrics provides Prometheus instrumentation for:
// - Provider request latency, throughput, and retries
// - Named cache hit/miss/write rates
// - Aggregation run duration and result sizes
// - API endpoint latency and throughput
// - Circuit breaker state
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of external provider requests",
		},
		[]string{"provider", "operation", "result"}, // result: "success", "error", "retry"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "External provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of provider request retries",
		},
		[]string{"provider", "reason"}, // reason: "rate_limit", "server_error", "network"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of named cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of named cache misses",
		},
		[]string{"cache"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of named cache blob writes",
		},
		[]string{"cache"},
	)

	CacheBlobBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_blob_bytes",
			Help: "Size of the last written cache blob in bytes",
		},
		[]string{"cache"},
	)

	// Aggregation Metrics
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of aggregation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"domain"},
	)

	AggregationRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_records",
			Help: "Number of deduplicated records produced by the last aggregation run",
		},
		[]string{"domain"},
	)

	AggregationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_errors_total",
			Help: "Total number of contained per-task aggregation errors",
		},
		[]string{"domain"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Scheduler Metrics
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduled refresh runs",
		},
		[]string{"domain", "result"}, // result: "success", "error", "skipped"
	)

	SchedulerLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_success_timestamp",
			Help: "Unix timestamp of the last successful refresh per domain",
		},
		[]string{"domain"},
	)
)

// RecordProviderRequest records one provider call with its outcome.
func RecordProviderRequest(provider, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ProviderRequests.WithLabelValues(provider, operation, result).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderRetry records a retried provider request.
func RecordProviderRetry(provider, reason string) {
	ProviderRetries.WithLabelValues(provider, reason).Inc()
}

// RecordCacheHit records a named cache hit.
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a named cache miss.
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordCacheWrite records a cache blob write and its size.
func RecordCacheWrite(cache string, bytes int) {
	CacheWrites.WithLabelValues(cache).Inc()
	CacheBlobBytes.WithLabelValues(cache).Set(float64(bytes))
}

// RecordAggregationRun records a completed aggregation run.
func RecordAggregationRun(domain string, duration time.Duration, records, taskErrors int) {
	AggregationDuration.WithLabelValues(domain).Observe(duration.Seconds())
	AggregationRecords.WithLabelValues(domain).Set(float64(records))
	if taskErrors > 0 {
		AggregationErrors.WithLabelValues(domain).Add(float64(taskErrors))
	}
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSchedulerRun records the outcome of a scheduled refresh.
func RecordSchedulerRun(domain, result string) {
	SchedulerRuns.WithLabelValues(domain, result).Inc()
	if result == "success" {
		SchedulerLastSuccess.WithLabelValues(domain).SetToCurrentTime()
	}
}
