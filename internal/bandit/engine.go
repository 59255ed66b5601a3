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
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crescendo/internal/logging"
	"github.com/tomtom215/crescendo/internal/metrics"
	"github.com/tomtom215/crescendo/internal/validation"
)

// MaxArmIDLength bounds arm identifiers.
const MaxArmIDLength = 512

// Config holds the engine's scoring parameters.
type Config struct {
	// Alpha scales the exploration bonus. 0 is pure exploitation.
	Alpha float64 `koanf:"alpha" validate:"finite,gte=0"`

	// Dimension is the feature dimension d.
	Dimension int `koanf:"dimension" validate:"min=1,max=1024"`

	// StateKey is the store key holding the encoded arms.
	StateKey string `koanf:"state_key" validate:"required"`
}

// DefaultConfig returns alpha 1.0 with 5-dimensional features.
func DefaultConfig() Config {
	return Config{
		Alpha:     1.0,
		Dimension: 5,
		StateKey:  DefaultStateKey,
	}
}

// RegistryConfig returns the registry settings implied by c.
func (c Config) RegistryConfig() RegistryConfig {
	return RegistryConfig{Dimension: c.Dimension, StateKey: c.StateKey}
}

// RecommendContext describes the caller's situation at request time.
// It is recorded in logs only; scoring uses each arm's registered features.
type RecommendContext struct {
	SessionID string
	Signals   map[string]string
}

// ArmScore is one arm's LinUCB score breakdown.
type ArmScore struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	Mean        float64 `json:"mean"`
	Uncertainty float64 `json:"uncertainty"`
	Pulls       int64   `json:"pulls"`
}

// Stats summarizes the engine state.
type Stats struct {
	Arms           int     `json:"arms"`
	TotalPulls     int64   `json:"total_pulls"`
	Degraded       bool    `json:"degraded"`
	DegradedReason string  `json:"degraded_reason,omitempty"`
	Alpha          float64 `json:"alpha"`
	Dimension      int     `json:"dimension"`
}

// ChoiceInput is a validated AddChoice request.
type ChoiceInput struct {
	ArmID    string    `validate:"required"`
	Features []float64 `validate:"dive,finite"`
}

// RewardInput is a validated Update request. Only the reward is checked
// here: any id that is not registered, including the empty one, is
// ErrUnknownArm.
type RewardInput struct {
	ArmID  string
	Reward float64 `validate:"finite,gte=0,lte=1"`
}

// Engine implements LinUCB over a Registry.
type Engine struct {
	registry *Registry
	alpha    float64
	dim      int
	logger   zerolog.Logger
}

// NewEngine creates an engine scoring the arms held by registry.
// The registry's dimension wins over cfg.Dimension.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(registry *Registry, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Dimension != 0 && cfg.Dimension != registry.Dimension() {
		logger.Warn().
			Int("config_dimension", cfg.Dimension).
			Int("registry_dimension", registry.Dimension()).
			Msg("Engine dimension differs from registry, using registry")
	}
	return &Engine{
		registry: registry,
		alpha:    cfg.Alpha,
		dim:      registry.Dimension(),
		logger:   logger.With().Str("component", "bandit_engine").Logger(),
	}
}

// AddChoice registers an arm with its feature vector. Registering an existing
// id is a no-op that keeps the learned statistics and the original features.
func (e *Engine) AddChoice(ctx context.Context, id string, features []float64) error {
	if err := e.validateChoice(id, features); err != nil {
		metrics.RecordRegistration(false, err)
		return err
	}

	created, err := e.registry.UpsertNew(ctx, id, features)
	metrics.RecordRegistration(created, err)
	if err != nil {
		return fmt.Errorf("add choice %q: %w", id, err)
	}

	if created {
		logger := logging.CtxWith(ctx, e.logger).Logger()
		logger.Debug().Str("arm_id", id).Msg("Arm registered")
	}
	return nil
}

func (e *Engine) validateChoice(id string, features []float64) error {
	if id == "" || len(id) > MaxArmIDLength {
		return fmt.Errorf("%w: length %d", ErrInvalidArmID, len(id))
	}
	if len(features) != e.dim {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidFeatures, len(features), e.dim)
	}
	if verr := validation.ValidateStruct(&ChoiceInput{ArmID: id, Features: features}); verr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeatures, verr)
	}
	return nil
}

// Update incorporates an observed reward in [0, 1] for a registered arm:
// A += x·xᵀ and b += reward·x, where x is the arm's registered features.
// An unknown id is an error and never registers the arm.
func (e *Engine) Update(ctx context.Context, id string, reward float64) error {
	if verr := validation.ValidateStruct(&RewardInput{ArmID: id, Reward: reward}); verr != nil {
		metrics.RecordUpdate("invalid", reward)
		return fmt.Errorf("%w: %w", ErrInvalidReward, verr)
	}

	err := e.registry.Mutate(ctx, id, func(a, b, x []float64) ([]float64, []float64, error) {
		addOuter(a, x, e.dim)
		axpy(reward, x, b)
		return a, b, nil
	})
	switch {
	case errors.Is(err, ErrUnknownArm):
		metrics.RecordUpdate("unknown_arm", reward)
		return err
	case err != nil:
		metrics.RecordUpdate("error", reward)
		return fmt.Errorf("update %q: %w", id, err)
	}

	metrics.RecordUpdate("applied", reward)
	logger := logging.CtxWith(ctx, e.logger).Logger()
	logger.Debug().
		Str("arm_id", id).
		Float64("reward", reward).
		Msg("Reward applied")
	return nil
}

// Recommend returns the id of the arm with the highest upper confidence
// bound. Exact ties go to the lexicographically smallest id.
func (e *Engine) Recommend(ctx context.Context, rc RecommendContext) (string, error) {
	start := time.Now()
	logger := e.requestLogger(ctx, rc)

	var (
		best  ArmScore
		found bool
	)
	err := e.registry.View(func(arm *Arm) error {
		s, err := e.score(arm)
		if err != nil {
			return err
		}
		if !found || ranksBefore(s, best) {
			best, found = s, true
		}
		return nil
	})

	switch {
	case err != nil:
		metrics.RecordRecommendation("error", time.Since(start))
		e.logScoreError(logger, err)
		return "", err
	case !found:
		metrics.RecordRecommendation("empty", time.Since(start))
		return "", ErrEmptyChoiceSet
	}

	metrics.RecordRecommendation("ok", time.Since(start))
	logger.Debug().
		Str("arm_id", best.ID).
		Float64("score", best.Score).
		Dur("duration", time.Since(start)).
		Msg("Recommendation selected")
	return best.ID, nil
}

// Rank returns up to k arms ordered as Recommend would choose them.
// k <= 0 returns every arm.
func (e *Engine) Rank(ctx context.Context, rc RecommendContext, k int) ([]ArmScore, error) {
	start := time.Now()
	logger := e.requestLogger(ctx, rc)

	scores := make([]ArmScore, 0, e.registry.Len())
	err := e.registry.View(func(arm *Arm) error {
		s, err := e.score(arm)
		if err != nil {
			return err
		}
		scores = append(scores, s)
		return nil
	})
	if err != nil {
		metrics.RecordRecommendation("error", time.Since(start))
		e.logScoreError(logger, err)
		return nil, err
	}
	if len(scores) == 0 {
		metrics.RecordRecommendation("empty", time.Since(start))
		return nil, ErrEmptyChoiceSet
	}

	sort.Slice(scores, func(i, j int) bool { return ranksBefore(scores[i], scores[j]) })
	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}

	metrics.RecordRecommendation("ok", time.Since(start))
	return scores, nil
}

// Arm returns a copy of the arm's current statistics.
func (e *Engine) Arm(id string) (Arm, error) {
	return e.registry.Get(id)
}

// Stats reports arm count, total pulls and the registry health.
func (e *Engine) Stats() Stats {
	st := Stats{Alpha: e.alpha, Dimension: e.dim}
	_ = e.registry.View(func(arm *Arm) error {
		st.Arms++
		st.TotalPulls += arm.Pulls
		return nil
	})
	if err := e.registry.Degraded(); err != nil {
		st.Degraded = true
		st.DegradedReason = err.Error()
	}
	return st
}

func (e *Engine) score(arm *Arm) (ArmScore, error) {
	mean, u, err := ucbTerms(arm.A, arm.B, arm.Features, e.dim)
	if err != nil {
		return ArmScore{}, fmt.Errorf("score arm %q: %w", arm.ID, err)
	}
	return ArmScore{
		ID:          arm.ID,
		Score:       mean + e.alpha*u,
		Mean:        mean,
		Uncertainty: u,
		Pulls:       arm.Pulls,
	}, nil
}

// ranksBefore orders by score descending, then id ascending.
//
//nolint:gocritic // ArmScore is small
func ranksBefore(a, b ArmScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

func (e *Engine) requestLogger(ctx context.Context, rc RecommendContext) zerolog.Logger {
	if rc.SessionID != "" && logging.SessionIDFromContext(ctx) == "" {
		ctx = logging.ContextWithSessionID(ctx, rc.SessionID)
	}
	logCtx := logging.CtxWith(ctx, e.logger)
	if len(rc.Signals) > 0 {
		logCtx = logCtx.Interface("signals", rc.Signals)
	}
	return logCtx.Logger()
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) logScoreError(logger zerolog.Logger, err error) {
	if errors.Is(err, ErrSingularMatrix) {
		metrics.BanditSingularMatrix.Inc()
	}
	logger.Error().Err(err).Msg("Recommendation failed")
}
