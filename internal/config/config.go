// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package config

import "time"

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//   - Bandit: LinUCB scoring parameters and the state key
//   - Store: where arm state is persisted (BadgerDB or memory)
//   - Breaker: circuit breaker around store calls
//   - Server: operations HTTP server (health, metrics, stats)
//   - Recovery: retry interval for a degraded start
//   - Logging: log level and output format
type Config struct {
	Bandit   BanditConfig   `koanf:"bandit"`
	Store    StoreConfig    `koanf:"store"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Server   ServerConfig   `koanf:"server"`
	Recovery RecoveryConfig `koanf:"recovery"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// BanditConfig holds the engine parameters.
type BanditConfig struct {
	// Alpha scales the exploration bonus. 0 disables exploration.
	// Default: 1.0
	Alpha float64 `koanf:"alpha" validate:"finite,gte=0"`

	// Dimension is the length of every arm's feature vector.
	// Changing it invalidates previously persisted state.
	// Default: 5
	Dimension int `koanf:"dimension" validate:"min=1,max=1024"`

	// StateKey is the store key for the encoded arm map.
	// Default: bandit:state
	StateKey string `koanf:"state_key" validate:"required,max=256"`
}

// StoreConfig selects and configures the state store.
type StoreConfig struct {
	// Backend is "badger" (durable) or "memory" (lost on exit).
	// Default: badger
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Path is the BadgerDB directory. Required for badger unless InMemory.
	// Default: /data/crescendo
	Path string `koanf:"path"`

	// InMemory runs BadgerDB without touching disk.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs each write before it is acknowledged.
	// Default: true
	SyncWrites bool `koanf:"sync_writes"`

	// Timeout bounds one store call.
	// Default: 2s
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// BreakerConfig configures the circuit breaker around the store.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests" validate:"min=1"`

	// Interval clears closed-state counts; 0 never clears.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MinRequests before the failure ratio is considered.
	MinRequests uint32 `koanf:"min_requests" validate:"min=1"`

	// FailureRatio that trips the breaker.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// ServerConfig configures the operations HTTP server.
type ServerConfig struct {
	// Enabled starts the server. Default: true
	Enabled bool `koanf:"enabled"`

	// Addr is the listen address. Default: :9090
	Addr string `koanf:"addr"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// RecoveryConfig configures reloading after a degraded start.
type RecoveryConfig struct {
	// Enabled runs the recovery service. Default: true
	Enabled bool `koanf:"enabled"`

	// Interval between reload attempts. Default: 30s
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}
