// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/crescendo/internal/bandit"
)

// Recoverer is the part of *bandit.Registry the recovery service needs.
type Recoverer interface {
	// Degraded returns the load failure, or nil when healthy.
	Degraded() error

	// Recover retries the load.
	Recover(ctx context.Context) error
}

// RecoveryServiceConfig holds configuration for the recovery service.
type RecoveryServiceConfig struct {
	// Interval between reload attempts. Default: 30s
	Interval time.Duration

	// AttemptTimeout bounds a single attempt. Default: Interval
	AttemptTimeout time.Duration
}

// RecoveryService retries loading the persisted arm state after a degraded
// start. It exits for good once the registry is healthy or once local writes
// have made the stored state authoritative.
type RecoveryService struct {
	registry Recoverer
	config   RecoveryServiceConfig
	logger   zerolog.Logger
	name     string
}

// NewRecoveryService creates a recovery service for registry.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecoveryService(registry Recoverer, cfg RecoveryServiceConfig, logger zerolog.Logger) *RecoveryService {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = cfg.Interval
	}
	return &RecoveryService{
		registry: registry,
		config:   cfg,
		logger:   logger.With().Str("service", "recovery").Logger(),
		name:     "state-recovery",
	}
}

// Serve implements suture.Service. It returns suture.ErrDoNotRestart when
// there is nothing left to recover.
func (s *RecoveryService) Serve(ctx context.Context) error {
	if s.registry.Degraded() == nil {
		s.logger.Debug().Msg("registry healthy, recovery not needed")
		return suture.ErrDoNotRestart
	}

	s.logger.Info().Dur("interval", s.config.Interval).Msg("state recovery running")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			done, err := s.attempt(ctx)
			if done {
				return err
			}
		}
	}
}

// attempt runs one recovery. done reports whether the service should stop.
func (s *RecoveryService) attempt(ctx context.Context) (done bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	start := time.Now()
	err = s.registry.Recover(attemptCtx)
	switch {
	case err == nil:
		s.logger.Info().Dur("duration", time.Since(start)).Msg("persisted state recovered")
		return true, suture.ErrDoNotRestart

	case errors.Is(err, bandit.ErrRecoveryPreempted):
		s.logger.Warn().Err(err).Msg("state recovery abandoned, local writes already persisted")
		return true, suture.ErrDoNotRestart

	default:
		s.logger.Warn().Err(err).Msg("state recovery attempt failed")
		return false, nil
	}
}

// String returns the service name for logging.
func (s *RecoveryService) String() string {
	return s.name
}
