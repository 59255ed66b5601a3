// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

// Package kvstore provides the byte-oriented key-value stores the bandit
// registry persists its state blob into.
//
// # Backends
//
//   - BadgerStore: durable embedded storage backed by BadgerDB v4
//   - MemoryStore: process-local map, used in tests and ephemeral deployments
//
// # Resilience
//
// BreakerStore wraps any Store with a sony/gobreaker circuit breaker and a
// per-call deadline. When the breaker is open, calls fail fast with
// ErrUnavailable instead of piling up behind a dead backend.
//
// # Errors
//
// Get returns ErrNotFound for a missing key. Every other failure (I/O, closed
// database, timeout, open circuit) is reported wrapped in ErrUnavailable so
// callers can classify it with errors.Is.
package kvstore
