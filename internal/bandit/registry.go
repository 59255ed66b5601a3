// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package bandit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crescendo/internal/bandit/codec"
	"github.com/tomtom215/crescendo/internal/kvstore"
	"github.com/tomtom215/crescendo/internal/metrics"
)

// DefaultStateKey is the store key holding the encoded arm map.
const DefaultStateKey = "bandit:state"

// symmetryTolerance bounds |A[i][j]-A[j][i]| for a loaded matrix.
const symmetryTolerance = 1e-9

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Dimension is the feature dimension d shared by every arm.
	Dimension int

	// StateKey is the store key for the encoded state. Defaults to DefaultStateKey.
	StateKey string
}

// Registry owns the arm map and keeps it in sync with the store.
//
// A single RWMutex guards the whole map. Writers hold the exclusive side
// across the persist round trip, so every mutation is applied to memory only
// after the store has accepted it. Readers share the lock and always see a
// state that was persisted.
type Registry struct {
	mu     sync.RWMutex
	store  kvstore.Store
	key    string
	dim    int
	arms   map[string]*Arm
	logger zerolog.Logger
	now    func() time.Time

	// degraded holds the load failure; nil when the state loaded cleanly or
	// the store has since accepted this process's state.
	degraded error

	// superseded keeps the load failure that a local write replaced. The
	// stored state then belongs to this process and Recover must not load it.
	superseded error
}

// LoadRegistry reads the persisted state and returns a ready registry.
//
// A missing or empty value is a cold start and is not an error. If the store
// cannot be read or the value is corrupt, LoadRegistry still returns a usable
// empty registry together with an error wrapping ErrDegradedStart and the
// cause, so the caller decides whether to serve.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func LoadRegistry(ctx context.Context, store kvstore.Store, cfg RegistryConfig, logger zerolog.Logger) (*Registry, error) {
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("bandit: dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.StateKey == "" {
		cfg.StateKey = DefaultStateKey
	}

	r := &Registry{
		store:  store,
		key:    cfg.StateKey,
		dim:    cfg.Dimension,
		arms:   make(map[string]*Arm),
		logger: logger.With().Str("component", "bandit_registry").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	arms, err := r.load(ctx)
	if err != nil {
		r.degraded = err
		metrics.SetDegraded(true)
		metrics.SetArmCount(0)
		r.logger.Error().Err(err).Str("key", r.key).Msg("Starting with empty arm registry")
		return r, fmt.Errorf("%w: %w", ErrDegradedStart, err)
	}

	r.arms = arms
	metrics.SetDegraded(false)
	metrics.SetArmCount(len(arms))
	r.logger.Info().Int("arms", len(arms)).Int("dimension", r.dim).Msg("Arm registry loaded")
	return r, nil
}

// load fetches and decodes the persisted state. A cold start yields an empty
// map and nil error.
func (r *Registry) load(ctx context.Context) (map[string]*Arm, error) {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return map[string]*Arm{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	state, err := codec.Decode(data)
	if err != nil {
		if errors.Is(err, codec.ErrCorruptState) {
			return nil, err
		}
		// Empty value, nothing was ever written.
		return map[string]*Arm{}, nil
	}

	if state.Dimension != r.dim {
		return nil, fmt.Errorf("%w: stored dimension %d, configured %d",
			codec.ErrCorruptState, state.Dimension, r.dim)
	}

	arms := make(map[string]*Arm, len(state.Arms))
	for id, rec := range state.Arms {
		if !isSymmetric(rec.A, r.dim, symmetryTolerance) {
			return nil, fmt.Errorf("%w: arm %q: design matrix not symmetric", codec.ErrCorruptState, id)
		}
		if _, err := cholesky(rec.A, r.dim); err != nil {
			return nil, fmt.Errorf("%w: arm %q: %w", codec.ErrCorruptState, id, err)
		}
		arms[id] = armFromRecord(id, rec)
	}
	return arms, nil
}

// Dimension returns d.
func (r *Registry) Dimension() int { return r.dim }

// Degraded returns the load failure the registry started with, or nil.
// It is cleared by a successful Recover.
func (r *Registry) Degraded() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

// Len returns the number of registered arms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.arms)
}

// IDs returns the registered arm ids in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.arms))
	for id := range r.arms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Get returns a deep copy of the arm.
func (r *Registry) Get(id string) (Arm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	arm, ok := r.arms[id]
	if !ok {
		return Arm{}, fmt.Errorf("%w: %q", ErrUnknownArm, id)
	}
	return arm.Clone(), nil
}

// View calls fn for every arm under the shared lock, so all calls observe the
// same persisted state. fn must not modify or retain the arm. View stops at the
// first error fn returns.
func (r *Registry) View(fn func(arm *Arm) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, arm := range r.arms {
		if err := fn(arm); err != nil {
			return err
		}
	}
	return nil
}

// UpsertNew registers id with A=I and b=0 if it is absent. An existing arm is
// left untouched and nothing is written. created reports whether an insert
// happened. If the store rejects the new state the insert is discarded.
func (r *Registry) UpsertNew(ctx context.Context, id string, features []float64) (created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.arms[id]; ok {
		return false, nil
	}
	r.reloadBeforeWriteLocked(ctx)
	if _, ok := r.arms[id]; ok {
		return false, nil
	}

	arm := newArm(id, features, r.dim, r.now())
	r.arms[id] = arm
	if err := r.persistLocked(ctx); err != nil {
		delete(r.arms, id)
		metrics.RecordRollback("upsert")
		r.logger.Warn().Err(err).Str("arm_id", id).Msg("Arm registration rolled back")
		return false, err
	}

	metrics.SetArmCount(len(r.arms))
	return true, nil
}

// MutateFunc computes new A and b from copies of the arm's current A, b and
// its fixed features x. It may modify and return its arguments.
type MutateFunc func(a, b, x []float64) (newA, newB []float64, err error)

// Mutate applies fn to the arm and persists the result before committing it.
// If fn fails or the store rejects the write, the arm is left as it was.
func (r *Registry) Mutate(ctx context.Context, id string, fn MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.arms[id]; !ok {
		r.reloadBeforeWriteLocked(ctx)
	}
	prev, ok := r.arms[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArm, id)
	}

	next := prev.Clone()
	newA, newB, err := fn(next.A, next.B, cloneVec(next.Features))
	if err != nil {
		return err
	}
	if len(newA) != r.dim*r.dim || len(newB) != r.dim {
		return fmt.Errorf("bandit: mutation of %q produced wrong shape", id)
	}
	next.A, next.B = newA, newB
	next.Pulls++
	next.UpdatedAt = r.now()

	r.arms[id] = &next
	if err := r.persistLocked(ctx); err != nil {
		r.arms[id] = prev
		metrics.RecordRollback("mutate")
		r.logger.Warn().Err(err).Str("arm_id", id).Msg("Arm update rolled back")
		return err
	}
	return nil
}

// Recover retries the initial load of a degraded registry. On success the
// loaded state replaces the empty one and the degraded flag is cleared. Once
// a local write has replaced the state that failed to load, there is nothing
// left to recover and Recover returns ErrRecoveryPreempted.
func (r *Registry) Recover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.superseded != nil {
		return fmt.Errorf("%w: %w", ErrRecoveryPreempted, r.superseded)
	}
	if r.degraded == nil {
		return nil
	}
	return r.recoverLocked(ctx)
}

func (r *Registry) recoverLocked(ctx context.Context) error {
	arms, err := r.load(ctx)
	if err != nil {
		r.degraded = err
		return err
	}

	r.arms = arms
	r.degraded = nil
	metrics.SetDegraded(false)
	metrics.SetArmCount(len(arms))
	r.logger.Info().Int("arms", len(arms)).Msg("Arm registry recovered")
	return nil
}

// reloadBeforeWriteLocked gives a registry that started without store access
// one chance to pick up the persisted state before its first write replaces it.
func (r *Registry) reloadBeforeWriteLocked(ctx context.Context) {
	if r.degraded == nil || !errors.Is(r.degraded, ErrStoreUnavailable) {
		return
	}
	if err := r.recoverLocked(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("Store still unavailable before write")
	}
}

// persistLocked encodes the full arm map and writes it under the state key.
// A successful write while degraded makes the store consistent with memory
// again, so it clears the degraded flag.
func (r *Registry) persistLocked(ctx context.Context) error {
	state := codec.State{
		Dimension: r.dim,
		Arms:      make(map[string]codec.ArmRecord, len(r.arms)),
	}
	for id, arm := range r.arms {
		state.Arms[id] = arm.record()
	}

	data, err := codec.Encode(state)
	if err != nil {
		return fmt.Errorf("bandit: %w", err)
	}

	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if r.degraded != nil {
		r.logger.Warn().Err(r.degraded).Msg("Unreadable persisted state replaced by local writes")
		r.superseded = r.degraded
		r.degraded = nil
		metrics.SetDegraded(false)
	}
	metrics.StateBytes.Set(float64(len(data)))
	return nil
}
