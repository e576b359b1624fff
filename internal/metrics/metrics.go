// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package metrics provides Prometheus instrumentation for Bannerscope:
//
//   - single-flight refresh outcomes and compute durations
//   - cache store error rates
//   - banner ingestion cycles and the current offset estimate
//   - discussion thread fetches
//   - API endpoint latency and throughput
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Refresh coordination metrics
	RefreshOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_outcomes_total",
			Help: "Outcomes of GetOrRefresh calls (fresh_hit, lease_won, lease_contended, cooldown)",
		},
		[]string{"outcome"},
	)

	ComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compute_duration_seconds",
			Help:    "Duration of sentiment computations in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}, // Jobs talk to a rate-limited upstream
		},
		[]string{"result"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_store_errors_total",
			Help: "Cache store operation failures by operation",
		},
		[]string{"operation"},
	)

	// Ingestion and prediction metrics
	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Banner ingestion cycles by result",
		},
		[]string{"result"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Duration of banner ingestion cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OffsetEstimateDays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offset_estimate_days",
			Help: "Current Asia-to-Global release offset estimate in days",
		},
	)

	OffsetSampleSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offset_estimate_sample_size",
			Help: "Number of matched banner pairs behind the current offset estimate",
		},
	)

	// Discussion fetch metrics
	ThreadFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thread_fetches_total",
			Help: "Discussion thread fetch attempts by result (success, partial, failure, breaker_open)",
		},
		[]string{"result"},
	)

	// API endpoint metrics
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
			Help: "Number of API requests currently being processed",
		},
	)
)

// RecordRefreshOutcome counts one GetOrRefresh outcome.
func RecordRefreshOutcome(outcome string) {
	RefreshOutcomes.WithLabelValues(outcome).Inc()
}

// RecordComputeResult records a finished computation and its duration.
func RecordComputeResult(result string, d time.Duration) {
	ComputeDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordStoreError counts one failed store operation.
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

// RecordIngestCycle records a finished ingestion cycle.
func RecordIngestCycle(result string, d time.Duration) {
	IngestCycles.WithLabelValues(result).Inc()
	IngestDuration.Observe(d.Seconds())
}

// SetOffsetEstimate publishes the current offset estimate.
func SetOffsetEstimate(days float64, sampleSize int) {
	OffsetEstimateDays.Set(days)
	OffsetSampleSize.Set(float64(sampleSize))
}

// RecordThreadFetch counts one discussion fetch attempt.
func RecordThreadFetch(result string) {
	ThreadFetches.WithLabelValues(result).Inc()
}

// RecordAPIRequest records metrics for an HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
