// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package bandit

import (
	"time"

	"github.com/tomtom215/crescendo/internal/bandit/codec"
)

// Arm is one candidate content item with its learned LinUCB statistics.
type Arm struct {
	// ID is the caller's opaque identifier (e.g. "spotify:track:...").
	ID string `json:"id"`

	// A is the d×d design matrix, row-major. Starts as the identity.
	A []float64 `json:"A"`

	// B is the reward-weighted sum of observed feature vectors.
	B []float64 `json:"b"`

	// Features is the context vector captured at registration.
	Features []float64 `json:"features"`

	// Pulls counts applied reward updates.
	Pulls int64 `json:"pulls"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newArm(id string, features []float64, d int, now time.Time) *Arm {
	return &Arm{
		ID:        id,
		A:         identity(d),
		B:         make([]float64, d),
		Features:  cloneVec(features),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the arm.
func (a *Arm) Clone() Arm {
	return Arm{
		ID:        a.ID,
		A:         cloneVec(a.A),
		B:         cloneVec(a.B),
		Features:  cloneVec(a.Features),
		Pulls:     a.Pulls,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (a *Arm) record() codec.ArmRecord {
	return codec.ArmRecord{
		A:         a.A,
		B:         a.B,
		Features:  a.Features,
		Pulls:     a.Pulls,
		CreatedAt: a.CreatedAt.UnixNano(),
		UpdatedAt: a.UpdatedAt.UnixNano(),
	}
}

func armFromRecord(id string, rec codec.ArmRecord) *Arm {
	return &Arm{
		ID:        id,
		A:         rec.A,
		B:         rec.B,
		Features:  rec.Features,
		Pulls:     rec.Pulls,
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, rec.UpdatedAt).UTC(),
	}
}

func cloneVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
