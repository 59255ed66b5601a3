// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crescendo/internal/api"
	"github.com/tomtom215/crescendo/internal/bandit"
	"github.com/tomtom215/crescendo/internal/config"
	"github.com/tomtom215/crescendo/internal/kvstore"
	"github.com/tomtom215/crescendo/internal/logging"
	"github.com/tomtom215/crescendo/internal/supervisor"
	"github.com/tomtom215/crescendo/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("store", cfg.Store.Backend).
		Int("dimension", cfg.Bandit.Dimension).
		Float64("alpha", cfg.Bandit.Alpha).
		Msg("Starting Crescendo")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close state store")
		}
	}()

	engineCfg := engineConfig(cfg)
	registry, err := bandit.LoadRegistry(ctx, store, engineCfg.RegistryConfig(), logging.Logger())
	switch {
	case errors.Is(err, bandit.ErrDegradedStart):
		logging.Warn().Err(err).Msg("Arm state unavailable, serving from an empty registry")
	case err != nil:
		logging.Error().Err(err).Msg("Failed to load arm registry")
		return
	}

	engine := bandit.NewEngine(registry, engineCfg, logging.Logger())

	tree, err := buildTree(cfg, registry, engine)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The tree reports exactly once and never closes errCh.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	stop()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Crescendo stopped")
}

// openStore opens the configured backend behind a circuit breaker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func openStore(cfg *config.Config, logger zerolog.Logger) (kvstore.Store, error) {
	var backend kvstore.Store
	switch cfg.Store.Backend {
	case "memory":
		backend = kvstore.NewMemoryStore()
	case "badger":
		db, err := kvstore.OpenBadger(kvstore.BadgerOptions{
			Path:       cfg.Store.Path,
			InMemory:   cfg.Store.InMemory,
			SyncWrites: cfg.Store.SyncWrites,
		}, logger)
		if err != nil {
			return nil, err
		}
		backend = db
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return kvstore.NewBreakerStore(backend, breakerConfig(cfg)), nil
}

func breakerConfig(cfg *config.Config) kvstore.BreakerConfig {
	return kvstore.BreakerConfig{
		Name:         "bandit-store",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
		CallTimeout:  cfg.Store.Timeout,
	}
}

func engineConfig(cfg *config.Config) bandit.Config {
	return bandit.Config{
		Alpha:     cfg.Bandit.Alpha,
		Dimension: cfg.Bandit.Dimension,
		StateKey:  cfg.Bandit.StateKey,
	}
}

// buildTree assembles the supervisor tree. Recovery only runs when the
// registry started degraded; it stops itself once state is back.
func buildTree(cfg *config.Config, registry *bandit.Registry, engine *bandit.Engine) (*supervisor.SupervisorTree, error) {
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout + treeCfg.ShutdownTimeout

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Recovery.Enabled && registry.Degraded() != nil {
		tree.AddDataService(services.NewRecoveryService(registry, services.RecoveryServiceConfig{
			Interval:       cfg.Recovery.Interval,
			AttemptTimeout: cfg.Store.Timeout,
		}, logging.Logger()))
		logging.Info().Dur("interval", cfg.Recovery.Interval).Msg("State recovery service added")
	}

	if cfg.Server.Enabled {
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      api.NewRouter(api.NewHandler(engine)),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logging.Logger()))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	}

	return tree, nil
}
