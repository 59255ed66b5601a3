// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package config

import (
	"fmt"
	"net"

	"github.com/tomtom215/crescendo/internal/validation"
)

// Validate checks field ranges via struct tags, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	return c.validateServer()
}

func (c *Config) validateStore() error {
	if c.Store.Backend == "badger" && !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("HTTP_ADDR %q is invalid: %w", c.Server.Addr, err)
	}
	return nil
}
