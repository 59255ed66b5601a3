// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

// Package codec encodes and decodes the bandit's persisted arm state.
//
// # Wire Format
//
// The state is a single JSON document so that one store write replaces it
// atomically:
//
//	{
//	  "version": 1,
//	  "dimension": 5,
//	  "A":          {"<arm>": [d*d floats, row-major]},
//	  "b":          {"<arm>": [d floats]},
//	  "features":   {"<arm>": [d floats]},
//	  "pulls":      {"<arm>": n},
//	  "created_at": {"<arm>": unix_nanos},
//	  "updated_at": {"<arm>": unix_nanos}
//	}
//
// A and b are the two parallel maps keyed by arm identifier. Map keys are
// written in sorted order, so re-encoding a decoded blob reproduces it
// byte for byte.
//
// # Errors
//
// Decode distinguishes a cold start (ErrNoPriorState alone) from a blob that
// exists but cannot be trusted (ErrCorruptState, which also matches
// ErrNoPriorState).
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// FormatVersion is the current wire format version.
const FormatVersion = 1

var (
	// ErrNoPriorState means there is no usable persisted state.
	ErrNoPriorState = errors.New("codec: no prior state")

	// ErrCorruptState means persisted bytes exist but are malformed.
	ErrCorruptState = errors.New("codec: corrupt state")
)

// corruptError matches both ErrCorruptState and ErrNoPriorState.
type corruptError struct {
	reason string
	cause  error
}

func (e *corruptError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCorruptState, e.reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", ErrCorruptState, e.reason)
}

func (e *corruptError) Unwrap() []error {
	errs := []error{ErrCorruptState, ErrNoPriorState}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func corrupt(cause error, format string, args ...interface{}) error {
	return &corruptError{reason: fmt.Sprintf(format, args...), cause: cause}
}

// ArmRecord is the persisted form of one arm.
type ArmRecord struct {
	// A is the d×d design matrix, row-major.
	A []float64

	// B is the reward-weighted feature sum.
	B []float64

	// Features is the fixed context vector captured at registration.
	Features []float64

	// Pulls counts applied reward updates.
	Pulls int64

	// CreatedAt and UpdatedAt are unix nanoseconds.
	CreatedAt int64
	UpdatedAt int64
}

// State is the decoded arm map.
type State struct {
	Dimension int
	Arms      map[string]ArmRecord
}

// document is the JSON shape on the wire.
type document struct {
	Version   int                  `json:"version"`
	Dimension int                  `json:"dimension"`
	A         map[string][]float64 `json:"A"`
	B         map[string][]float64 `json:"b"`
	Features  map[string][]float64 `json:"features"`
	Pulls     map[string]int64     `json:"pulls"`
	CreatedAt map[string]int64     `json:"created_at"`
	UpdatedAt map[string]int64     `json:"updated_at"`
}

// Encode serializes state. It fails only if state is not well formed
// (wrong vector lengths or non-finite values), which the registry never
// produces.
//
//nolint:gocritic // hugeParam: State passed by value for immutability
func Encode(state State) ([]byte, error) {
	if err := validate(state); err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	n := len(state.Arms)
	doc := document{
		Version:   FormatVersion,
		Dimension: state.Dimension,
		A:         make(map[string][]float64, n),
		B:         make(map[string][]float64, n),
		Features:  make(map[string][]float64, n),
		Pulls:     make(map[string]int64, n),
		CreatedAt: make(map[string]int64, n),
		UpdatedAt: make(map[string]int64, n),
	}

	for id, arm := range state.Arms {
		doc.A[id] = arm.A
		doc.B[id] = arm.B
		doc.Features[id] = arm.Features
		doc.Pulls[id] = arm.Pulls
		doc.CreatedAt[id] = arm.CreatedAt
		doc.UpdatedAt[id] = arm.UpdatedAt
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode.
//
// Missing input (nil, empty or whitespace) returns ErrNoPriorState. Anything
// else that is not a valid document returns an error matching
// ErrCorruptState. All six arm maps must carry exactly the same ids.
func Decode(data []byte) (State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return State{}, ErrNoPriorState
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, corrupt(err, "unmarshal")
	}

	if doc.Version != FormatVersion {
		return State{}, corrupt(nil, "unsupported version %d", doc.Version)
	}
	if doc.Dimension <= 0 {
		return State{}, corrupt(nil, "invalid dimension %d", doc.Dimension)
	}
	n := len(doc.A)
	if len(doc.B) != n || len(doc.Features) != n ||
		len(doc.Pulls) != n || len(doc.CreatedAt) != n || len(doc.UpdatedAt) != n {
		return State{}, corrupt(nil,
			"arm maps differ in size (A=%d b=%d features=%d pulls=%d created_at=%d updated_at=%d)",
			n, len(doc.B), len(doc.Features), len(doc.Pulls), len(doc.CreatedAt), len(doc.UpdatedAt))
	}

	state := State{
		Dimension: doc.Dimension,
		Arms:      make(map[string]ArmRecord, len(doc.A)),
	}

	for id, a := range doc.A {
		b, okB := doc.B[id]
		x, okX := doc.Features[id]
		if !okB || !okX {
			return State{}, corrupt(nil, "arm %q missing b or features", id)
		}
		pulls, okP := doc.Pulls[id]
		created, okC := doc.CreatedAt[id]
		updated, okU := doc.UpdatedAt[id]
		if !okP || !okC || !okU {
			return State{}, corrupt(nil, "arm %q missing pulls or timestamps", id)
		}
		state.Arms[id] = ArmRecord{
			A:         a,
			B:         b,
			Features:  x,
			Pulls:     pulls,
			CreatedAt: created,
			UpdatedAt: updated,
		}
	}

	if err := validate(state); err != nil {
		return State{}, corrupt(err, "invalid arm")
	}
	return state, nil
}

// validate checks shapes and finiteness of every arm.
//
//nolint:gocritic // hugeParam: State passed by value for immutability
func validate(state State) error {
	d := state.Dimension
	if d <= 0 {
		return fmt.Errorf("invalid dimension %d", d)
	}

	for id, arm := range state.Arms {
		if id == "" {
			return fmt.Errorf("empty arm id")
		}
		if len(arm.A) != d*d {
			return fmt.Errorf("arm %q: A has %d values, want %d", id, len(arm.A), d*d)
		}
		if len(arm.B) != d {
			return fmt.Errorf("arm %q: b has %d values, want %d", id, len(arm.B), d)
		}
		if len(arm.Features) != d {
			return fmt.Errorf("arm %q: features has %d values, want %d", id, len(arm.Features), d)
		}
		if arm.Pulls < 0 {
			return fmt.Errorf("arm %q: negative pull count", id)
		}
		if !allFinite(arm.A) || !allFinite(arm.B) || !allFinite(arm.Features) {
			return fmt.Errorf("arm %q: non-finite value", id)
		}
	}
	return nil
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
