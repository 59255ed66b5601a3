// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package bandit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crescendo/internal/kvstore"
)

func newTestEngine(t *testing.T, dim int, alpha float64) (*Engine, *kvstore.MemoryStore) {
	t.Helper()

	store := kvstore.NewMemoryStore()
	reg, err := LoadRegistry(context.Background(), store, RegistryConfig{Dimension: dim}, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	cfg := Config{Alpha: alpha, Dimension: dim, StateKey: DefaultStateKey}
	return NewEngine(reg, cfg, zerolog.Nop()), store
}

func unit(d, i int) []float64 {
	v := make([]float64, d)
	v[i] = 1
	return v
}

func storedState(t *testing.T, store *kvstore.MemoryStore) []byte {
	t.Helper()
	data, err := store.Get(context.Background(), DefaultStateKey)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	return data
}

func TestAddChoice_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, 5, 1)

	original := []float64{1, 0, 0, 0, 0}
	if err := e.AddChoice(ctx, "spotify:track:1", original); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	if err := e.Update(ctx, "spotify:track:1", 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	before := storedState(t, store)
	writes := store.Writes()

	// Re-registering with different features keeps the learned arm.
	if err := e.AddChoice(ctx, "spotify:track:1", []float64{0, 1, 0, 0, 0}); err != nil {
		t.Fatalf("second AddChoice() error = %v", err)
	}

	if store.Writes() != writes {
		t.Errorf("re-registration wrote to store: writes %d -> %d", writes, store.Writes())
	}
	if !bytes.Equal(before, storedState(t, store)) {
		t.Error("re-registration changed persisted state")
	}

	arm, err := e.Arm("spotify:track:1")
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if arm.Pulls != 1 {
		t.Errorf("Pulls = %d, want 1", arm.Pulls)
	}
	if !approxEqual(arm.Features, original) {
		t.Errorf("Features = %v, want %v", arm.Features, original)
	}
	if arm.A[0] != 2 || arm.B[0] != 1 {
		t.Errorf("statistics reset: A[0][0]=%v b[0]=%v", arm.A[0], arm.B[0])
	}
}

func TestAddChoice_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		features []float64
		wantErr  error
	}{
		{name: "empty id", id: "", features: unit(3, 0), wantErr: ErrInvalidArmID},
		{name: "oversized id", id: strings.Repeat("x", MaxArmIDLength+1), features: unit(3, 0), wantErr: ErrInvalidArmID},
		{name: "too few features", id: "a", features: []float64{1, 0}, wantErr: ErrInvalidFeatures},
		{name: "too many features", id: "a", features: []float64{1, 0, 0, 0}, wantErr: ErrInvalidFeatures},
		{name: "nil features", id: "a", features: nil, wantErr: ErrInvalidFeatures},
		{name: "NaN feature", id: "a", features: []float64{1, math.NaN(), 0}, wantErr: ErrInvalidFeatures},
		{name: "infinite feature", id: "a", features: []float64{math.Inf(1), 0, 0}, wantErr: ErrInvalidFeatures},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store := newTestEngine(t, 3, 1)

			err := e.AddChoice(context.Background(), tt.id, tt.features)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddChoice() error = %v, want %v", err, tt.wantErr)
			}
			if e.registry.Len() != 0 {
				t.Errorf("invalid arm was registered")
			}
			if store.Writes() != 0 {
				t.Errorf("invalid arm was persisted")
			}
		})
	}
}

func TestAddChoice_RollbackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, 2, 1)

	store.SetFailures(nil, errors.New("disk full"))
	err := e.AddChoice(ctx, "a", []float64{1, 0})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("AddChoice() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := e.Arm("a"); !errors.Is(err, ErrUnknownArm) {
		t.Errorf("rolled back arm still visible: err = %v", err)
	}

	store.SetFailures(nil, nil)
	if err := e.AddChoice(ctx, "a", []float64{1, 0}); err != nil {
		t.Fatalf("AddChoice() after recovery error = %v", err)
	}
	if e.registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.registry.Len())
	}
}

func TestUpdate_AppliesRankOneUpdate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2, 1)

	if err := e.AddChoice(ctx, "a", []float64{1, 2}); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	if err := e.Update(ctx, "a", 0.5); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	arm, err := e.Arm("a")
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if want := []float64{2, 2, 2, 5}; !approxEqual(arm.A, want) {
		t.Errorf("A = %v, want %v", arm.A, want)
	}
	if want := []float64{0.5, 1}; !approxEqual(arm.B, want) {
		t.Errorf("b = %v, want %v", arm.B, want)
	}
	if arm.Pulls != 1 {
		t.Errorf("Pulls = %d, want 1", arm.Pulls)
	}
	if arm.UpdatedAt.Before(arm.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", arm.UpdatedAt, arm.CreatedAt)
	}
}

func TestUpdate_UnknownArmLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, 3, 1)

	if err := e.AddChoice(ctx, "a", unit(3, 0)); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	if err := e.Update(ctx, "a", 0.7); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	before := storedState(t, store)
	armBefore, _ := e.Arm("a")
	writes := store.Writes()

	for _, id := range []string{"missing", ""} {
		t.Run(fmt.Sprintf("id=%q", id), func(t *testing.T) {
			err := e.Update(ctx, id, 0.5)
			if !errors.Is(err, ErrUnknownArm) {
				t.Fatalf("Update(%q) error = %v, want ErrUnknownArm", id, err)
			}
			if errors.Is(err, ErrInvalidReward) {
				t.Errorf("Update(%q) with a valid reward reported ErrInvalidReward", id)
			}

			if !bytes.Equal(before, storedState(t, store)) {
				t.Error("persisted state changed")
			}
			if store.Writes() != writes {
				t.Error("store was written")
			}
			if e.registry.Len() != 1 {
				t.Errorf("Len() = %d, unknown arm was auto-registered", e.registry.Len())
			}
			armAfter, _ := e.Arm("a")
			if !approxEqual(armAfter.A, armBefore.A) || !approxEqual(armAfter.B, armBefore.B) || armAfter.Pulls != armBefore.Pulls {
				t.Error("other arm changed")
			}
		})
	}
}

func TestUpdate_InvalidReward(t *testing.T) {
	tests := []struct {
		name   string
		reward float64
	}{
		{name: "negative", reward: -0.1},
		{name: "above one", reward: 1.5},
		{name: "NaN", reward: math.NaN()},
		{name: "positive infinity", reward: math.Inf(1)},
		{name: "negative infinity", reward: math.Inf(-1)},
	}

	ctx := context.Background()
	e, store := newTestEngine(t, 2, 1)
	if err := e.AddChoice(ctx, "a", []float64{1, 1}); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	writes := store.Writes()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Update(ctx, "a", tt.reward); !errors.Is(err, ErrInvalidReward) {
				t.Errorf("Update(%v) error = %v, want ErrInvalidReward", tt.reward, err)
			}
		})
	}

	if store.Writes() != writes {
		t.Error("invalid rewards were persisted")
	}
}

func TestUpdate_RollbackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, 2, 1)

	if err := e.AddChoice(ctx, "a", []float64{1, 0}); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	before := storedState(t, store)

	store.SetFailures(nil, errors.New("connection reset"))
	if err := e.Update(ctx, "a", 1); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Update() error = %v, want ErrStoreUnavailable", err)
	}

	arm, _ := e.Arm("a")
	if arm.Pulls != 0 || !approxEqual(arm.A, identity(2)) || !approxEqual(arm.B, []float64{0, 0}) {
		t.Errorf("in-memory arm changed after failed persist: %+v", arm)
	}

	store.SetFailures(nil, nil)
	if !bytes.Equal(before, storedState(t, store)) {
		t.Error("persisted state changed after failed write")
	}
}

func TestUpdate_KeepsDesignMatrixPositiveDefinite(t *testing.T) {
	ctx := context.Background()
	const d = 5
	e, _ := newTestEngine(t, d, 1)

	features := []float64{0.9, -0.3, 0.25, 1e-3, 4}
	if err := e.AddChoice(ctx, "a", features); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	for i := 0; i < 500; i++ {
		if err := e.Update(ctx, "a", float64(i%11)/10); err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
	}

	arm, _ := e.Arm("a")
	if !isSymmetric(arm.A, d, 1e-9) {
		t.Error("A is not symmetric")
	}
	if _, err := cholesky(arm.A, d); err != nil {
		t.Errorf("cholesky(A) error = %v", err)
	}
	if _, err := e.Recommend(ctx, RecommendContext{}); err != nil {
		t.Errorf("Recommend() error = %v", err)
	}
}

func TestRecommend_EmptyChoiceSet(t *testing.T) {
	e, _ := newTestEngine(t, 5, 1)

	if _, err := e.Recommend(context.Background(), RecommendContext{}); !errors.Is(err, ErrEmptyChoiceSet) {
		t.Errorf("Recommend() error = %v, want ErrEmptyChoiceSet", err)
	}
	if _, err := e.Rank(context.Background(), RecommendContext{}, 3); !errors.Is(err, ErrEmptyChoiceSet) {
		t.Errorf("Rank() error = %v, want ErrEmptyChoiceSet", err)
	}
}

func TestRecommend_SingleArm(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 3, 1)

	if err := e.AddChoice(ctx, "only", []float64{0.2, 0.4, 0.1}); err != nil {
		t.Fatalf("AddChoice() error = %v", err)
	}
	for _, r := range []float64{0, 1, 0, 0} {
		if err := e.Update(ctx, "only", r); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, err := e.Recommend(ctx, RecommendContext{})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if got != "only" {
			t.Errorf("Recommend() = %q, want %q", got, "only")
		}
	}
}

func TestRecommend_TieBreaksOnSmallestID(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 5, 1)

	x := []float64{1, 0, 0, 0, 0}
	for _, id := range []string{"B1", "C1", "A1"} {
		if err := e.AddChoice(ctx, id, x); err != nil {
			t.Fatalf("AddChoice(%q) error = %v", id, err)
		}
	}

	for i := 0; i < 10; i++ {
		got, err := e.Recommend(ctx, RecommendContext{SessionID: "s1"})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if got != "A1" {
			t.Fatalf("Recommend() = %q, want %q", got, "A1")
		}
	}
}

func TestRecommend_Exploitation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2, 0)

	if err := e.AddChoice(ctx, "a", []float64{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := e.AddChoice(ctx, "b", []float64{0, 1}); err != nil {
		t.Fatal(err)
	}

	// Both score 0; the tie goes to "a".
	if got, _ := e.Recommend(ctx, RecommendContext{}); got != "a" {
		t.Fatalf("Recommend() = %q, want %q", got, "a")
	}

	if err := e.Update(ctx, "b", 1); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Recommend(ctx, RecommendContext{}); got != "b" {
		t.Errorf("Recommend() after reward = %q, want %q", got, "b")
	}
}

func TestRecommend_Exploration(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2, 1)

	if err := e.AddChoice(ctx, "a", []float64{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := e.AddChoice(ctx, "b", []float64{0, 1}); err != nil {
		t.Fatal(err)
	}

	// Repeated low rewards shrink a's confidence bound below b's.
	for i := 0; i < 5; i++ {
		if err := e.Update(ctx, "a", 0); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := e.Recommend(ctx, RecommendContext{}); got != "b" {
		t.Errorf("Recommend() = %q, want unexplored arm %q", got, "b")
	}
}

func TestRank(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 3, 0)

	for i, id := range []string{"c", "a", "b"} {
		if err := e.AddChoice(ctx, id, unit(3, i)); err != nil {
			t.Fatal(err)
		}
	}
	// c: one reward of 1 -> mean 0.5. b: one reward of 0.5 -> mean 0.25.
	if err := e.Update(ctx, "c", 1); err != nil {
		t.Fatal(err)
	}
	if err := e.Update(ctx, "b", 0.5); err != nil {
		t.Fatal(err)
	}

	scores, err := e.Rank(ctx, RecommendContext{}, 2)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("len(Rank()) = %d, want 2", len(scores))
	}
	if scores[0].ID != "c" || scores[1].ID != "b" {
		t.Errorf("Rank() order = [%s %s], want [c b]", scores[0].ID, scores[1].ID)
	}
	if math.Abs(scores[0].Mean-0.5) > eps || math.Abs(scores[1].Mean-0.25) > eps {
		t.Errorf("means = %v, %v; want 0.5, 0.25", scores[0].Mean, scores[1].Mean)
	}

	all, err := e.Rank(ctx, RecommendContext{}, 0)
	if err != nil {
		t.Fatalf("Rank(0) error = %v", err)
	}
	if len(all) != 3 || all[2].ID != "a" {
		t.Errorf("Rank(0) = %+v, want all three arms ending with a", all)
	}

	best, _ := e.Recommend(ctx, RecommendContext{})
	if best != scores[0].ID {
		t.Errorf("Recommend() = %q, Rank()[0] = %q", best, scores[0].ID)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2, 0.5)

	for _, id := range []string{"a", "b"} {
		if err := e.AddChoice(ctx, id, []float64{1, 1}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := e.Update(ctx, "a", 1); err != nil {
			t.Fatal(err)
		}
	}

	st := e.Stats()
	want := Stats{Arms: 2, TotalPulls: 3, Alpha: 0.5, Dimension: 2}
	if st != want {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}
}

func TestEngine_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	const (
		d        = 5
		arms     = 10
		perArm   = 20
		readers  = 4
		readIter = 50
	)
	e, _ := newTestEngine(t, d, 1)

	for i := 0; i < arms; i++ {
		if err := e.AddChoice(ctx, fmt.Sprintf("arm-%02d", i), unit(d, i%d)); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, arms*perArm+readers*readIter)

	for i := 0; i < arms; i++ {
		id := fmt.Sprintf("arm-%02d", i)
		for j := 0; j < perArm; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := e.Update(ctx, id, 1); err != nil {
					errs <- err
				}
			}()
		}
	}
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < readIter; k++ {
				if _, err := e.Recommend(ctx, RecommendContext{}); err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call error = %v", err)
	}

	for i := 0; i < arms; i++ {
		arm, err := e.Arm(fmt.Sprintf("arm-%02d", i))
		if err != nil {
			t.Fatal(err)
		}
		j := i % d
		if arm.Pulls != perArm {
			t.Errorf("%s Pulls = %d, want %d", arm.ID, arm.Pulls, perArm)
		}
		if arm.A[j*d+j] != 1+perArm {
			t.Errorf("%s A[%d][%d] = %v, want %d", arm.ID, j, j, arm.A[j*d+j], 1+perArm)
		}
		if arm.B[j] != perArm {
			t.Errorf("%s b[%d] = %v, want %d", arm.ID, j, arm.B[j], perArm)
		}
	}
}
