// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

// Package bandit implements a LinUCB contextual bandit over a persisted arm
// registry.
//
// # Model
//
// Every arm carries a d×d design matrix A (initially the identity), a
// reward vector b (initially zero) and a fixed feature vector x captured at
// registration. Recommend scores each arm as
//
//	θ = A⁻¹b
//	score = x·θ + α·sqrt(xᵀA⁻¹x)
//
// and returns the highest score, breaking exact ties by the smallest id.
// Update applies A += x·xᵀ and b += r·x. A is identity plus PSD outer
// products, so it stays symmetric positive definite and is inverted with a
// Cholesky factorization.
//
// # Persistence
//
// The Registry keeps the whole arm map in memory behind one sync.RWMutex and
// writes it as a single codec blob to a kvstore.Store after every change,
// before the change becomes visible. A failed write leaves memory as it was.
//
//	store := kvstore.NewBreakerStore(badgerStore, kvstore.DefaultBreakerConfig())
//	reg, err := bandit.LoadRegistry(ctx, store, cfg.RegistryConfig(), logger)
//	if errors.Is(err, bandit.ErrDegradedStart) {
//	    // serving with an empty registry; see reg.Degraded()
//	}
//	engine := bandit.NewEngine(reg, cfg, logger)
//
// # Errors
//
// All failures wrap one of the sentinels in errors.go and should be matched
// with errors.Is.
package bandit
