// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package bandit

import "errors"

var (
	// ErrStoreUnavailable means the external store could not be read or
	// written. Mutations that fail with it have not been applied.
	ErrStoreUnavailable = errors.New("bandit: store unavailable")

	// ErrUnknownArm is returned when an operation names an arm that was
	// never registered.
	ErrUnknownArm = errors.New("bandit: unknown arm")

	// ErrEmptyChoiceSet is returned by Recommend when no arms are registered.
	ErrEmptyChoiceSet = errors.New("bandit: empty choice set")

	// ErrSingularMatrix means an arm's design matrix failed to factorize.
	// A is identity plus PSD outer products, so this is an invariant violation.
	ErrSingularMatrix = errors.New("bandit: singular design matrix")

	// ErrDegradedStart is returned by LoadRegistry when the persisted state
	// could not be loaded. The registry it returns alongside is usable but empty.
	ErrDegradedStart = errors.New("bandit: degraded start")

	// ErrRecoveryPreempted is returned by Recover once a local write has
	// replaced the state that failed to load.
	ErrRecoveryPreempted = errors.New("bandit: recovery preempted by local writes")

	// ErrInvalidArmID is returned for an empty or oversized arm identifier.
	ErrInvalidArmID = errors.New("bandit: invalid arm id")

	// ErrInvalidFeatures is returned when a feature vector has the wrong
	// length or contains NaN/Inf.
	ErrInvalidFeatures = errors.New("bandit: invalid features")

	// ErrInvalidReward is returned for rewards outside [0, 1].
	ErrInvalidReward = errors.New("bandit: invalid reward")
)
