// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bandit Engine Metrics
	BanditRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_registrations_total",
			Help: "Total number of AddChoice calls",
		},
		[]string{"result"}, // "created", "existing", "error"
	)

	BanditUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_updates_total",
			Help: "Total number of reward updates",
		},
		[]string{"result"}, // "applied", "unknown_arm", "invalid", "error"
	)

	BanditRewardSum = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandit_reward_sum_total",
			Help: "Sum of all applied rewards",
		},
	)

	BanditRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_recommendations_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"result"}, // "ok", "empty", "error"
	)

	BanditRecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandit_recommend_duration_seconds",
			Help:    "Time spent scoring all arms for one recommendation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	BanditArms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandit_arms",
			Help: "Current number of registered arms",
		},
	)

	BanditDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandit_degraded",
			Help: "1 when the registry started without its persisted state, 0 otherwise",
		},
	)

	BanditSingularMatrix = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandit_singular_matrix_total",
			Help: "Total number of design matrices that failed to factorize",
		},
	)

	// Persistence Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandit_store_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "get", "set"
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_store_operation_errors_total",
			Help: "Total number of failed key-value store operations",
		},
		[]string{"operation", "reason"}, // reason: "failure", "rejected"
	)

	PersistRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_persist_rollbacks_total",
			Help: "In-memory mutations rolled back because persisting failed",
		},
		[]string{"operation"}, // "upsert", "mutate"
	)

	StateBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandit_state_bytes",
			Help: "Size of the last persisted state blob in bytes",
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

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
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
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ops API Metrics
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
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRegistration records the outcome of an AddChoice call.
func RecordRegistration(created bool, err error) {
	switch {
	case err != nil:
		BanditRegistrations.WithLabelValues("error").Inc()
	case created:
		BanditRegistrations.WithLabelValues("created").Inc()
	default:
		BanditRegistrations.WithLabelValues("existing").Inc()
	}
}

// RecordUpdate records the outcome of a reward update.
// result is one of "applied", "unknown_arm", "invalid", "error".
func RecordUpdate(result string, reward float64) {
	BanditUpdates.WithLabelValues(result).Inc()
	if result == "applied" {
		BanditRewardSum.Add(reward)
	}
}

// RecordRecommendation records a recommendation request and its latency.
// result is one of "ok", "empty", "error".
func RecordRecommendation(result string, duration time.Duration) {
	BanditRecommendations.WithLabelValues(result).Inc()
	BanditRecommendDuration.Observe(duration.Seconds())
}

// SetArmCount updates the registered-arm gauge.
func SetArmCount(n int) {
	BanditArms.Set(float64(n))
}

// SetDegraded updates the degraded-start gauge.
func SetDegraded(degraded bool) {
	if degraded {
		BanditDegraded.Set(1)
		return
	}
	BanditDegraded.Set(0)
}

// RecordRollback records an in-memory mutation undone after a failed persist.
func RecordRollback(operation string) {
	PersistRollbacks.WithLabelValues(operation).Inc()
}

// RecordAPIRequest records ops API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
