// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

/*
Package config provides centralized configuration management for Crescendo.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file, then environment variables.

# Config File

The first existing file wins: $CONFIG_PATH, config.yaml, config.yml,
/etc/crescendo/config.yaml, /etc/crescendo/config.yml.

	bandit:
	  alpha: 0.5
	  dimension: 8
	store:
	  backend: badger
	  path: /var/lib/crescendo
	  timeout: 2s
	logging:
	  level: debug

# Environment Variables

Only mapped variables are read; everything else in the environment is ignored.

	BANDIT_ALPHA, BANDIT_DIMENSION, BANDIT_STATE_KEY
	STORE_BACKEND, STORE_PATH (or BADGER_PATH), STORE_IN_MEMORY,
	STORE_SYNC_WRITES, STORE_TIMEOUT
	BREAKER_MAX_REQUESTS, BREAKER_INTERVAL, BREAKER_TIMEOUT,
	BREAKER_MIN_REQUESTS, BREAKER_FAILURE_RATIO
	HTTP_ENABLED, HTTP_ADDR, HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT,
	HTTP_SHUTDOWN_TIMEOUT
	RECOVERY_ENABLED, RECOVERY_INTERVAL
	LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Durations use Go syntax ("500ms", "2s", "1m").

# Validation

LoadWithKoanf validates the result with go-playground/validator struct tags
(see internal/validation) and a few cross-field rules, and fails fast on
invalid values.
*/
package config
