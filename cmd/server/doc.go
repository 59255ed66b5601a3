// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

/*
Package main is the entry point for the Crescendo server.

Crescendo hosts a LinUCB contextual-bandit engine whose arm state lives in an
embedded BadgerDB store. The process loads that state once, serves the
operations endpoints, and keeps retrying the load in the background when it
started degraded.

# Application Architecture

	RootSupervisor ("crescendo")
	├── DataSupervisor ("data-layer")
	│   └── state-recovery (only after a degraded start)
	└── APISupervisor ("api-layer")
	    └── ops-http-server (/healthz, /stats, /metrics)

Startup order:

 1. Configuration: Koanf v2 defaults, config.yaml, then environment
 2. Logging: zerolog with the configured level and format
 3. Store: BadgerDB (or memory) behind a gobreaker circuit breaker
 4. Registry: decode persisted arm state; corrupt or unreachable state
    starts an empty registry flagged degraded
 5. Supervisor tree: recovery and HTTP services

# Configuration

Common environment variables:

	BANDIT_ALPHA=1.0           exploration weight
	BANDIT_DIMENSION=5         feature vector length
	STORE_BACKEND=badger       badger or memory
	STORE_PATH=/data/crescendo BadgerDB directory
	HTTP_ADDR=:9090            ops server listen address
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, the supervisor reports any service that failed to
stop, and the store is closed last.
*/
package main
