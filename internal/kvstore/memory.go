// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package kvstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
//
// FailGets and FailSets inject errors, which lets tests exercise the
// unavailable paths of callers without a real backend.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	// FailGets, when non-nil, is returned (wrapped in ErrUnavailable) by Get.
	FailGets error

	// FailSets, when non-nil, is returned (wrapped in ErrUnavailable) by Set.
	FailSets error

	sets int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("%w: store closed", ErrUnavailable)
	}
	if m.FailGets != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, m.FailGets)
	}

	val, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: store closed", ErrUnavailable)
	}
	if m.FailSets != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, m.FailSets)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.sets++
	return nil
}

// SetFailures replaces the injected Get and Set errors under the store lock.
func (m *MemoryStore) SetFailures(getErr, setErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailGets = getErr
	m.FailSets = setErr
}

// Writes returns the number of successful Set calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
