// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the ops server:

	curl http://localhost:8088/metrics

# Available Metrics

Bandit Metrics:
  - bandit_registrations_total: AddChoice outcomes (counter)
    Labels: result (created, existing, error)
  - bandit_updates_total: reward update outcomes (counter)
    Labels: result (applied, unknown_arm, invalid, error)
  - bandit_reward_sum_total: sum of applied rewards (counter)
  - bandit_recommendations_total: Recommend outcomes (counter)
    Labels: result (ok, empty, error)
  - bandit_recommend_duration_seconds: scoring latency (histogram)
  - bandit_arms: registered arms (gauge)
  - bandit_degraded: 1 while running without persisted state (gauge)
  - bandit_singular_matrix_total: factorization failures (counter)

Persistence Metrics:
  - bandit_store_operation_duration_seconds: store latency (histogram)
    Labels: operation (get, set)
  - bandit_store_operation_errors_total: failed store calls (counter)
    Labels: operation, reason (failure, rejected)
  - bandit_persist_rollbacks_total: mutations undone after a failed persist
    Labels: operation (upsert, mutate)
  - bandit_state_bytes: size of the last persisted blob (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Labels: name, result
  - circuit_breaker_consecutive_failures: Labels: name
  - circuit_breaker_state_transitions_total: Labels: name, from_state, to_state

# Alerting

	- alert: BanditDegradedStart
	  expr: bandit_degraded == 1
	  for: 5m

	- alert: BanditStoreCircuitOpen
	  expr: circuit_breaker_state{name="bandit-store"} == 2
	  for: 1m
*/
package metrics
