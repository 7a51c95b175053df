/*
 * vardr config
 *
 * Copyright (c) 2024 Telenor Norge AS
 *
 * This library is free software; you can redistribute it and/or
 * modify it under the terms of the GNU Lesser General Public
 * License as published by the Free Software Foundation; either
 * version 2.1 of the License, or (at your option) any later version.
 *
 * This library is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public
 * License along with this library; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301  USA
 */

package vardr

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration for a collector instance. There
// is deliberately no package-global instance: construct one with
// Default() or ParseFile() and pass it by reference to whatever needs
// it, so tests can run with different configurations side by side.
//
// Durations are integer seconds in the file, matching how operators
// already express them (interval: 3600, timeout: 60).
type Config struct {
	Workers         int      `yaml:"workers"`          // concurrent device collections
	Timeout         int      `yaml:"timeout"`          // seconds, per-device deadline
	Interval        int      `yaml:"interval"`         // seconds between scheduled collections
	Retries         int      `yaml:"retries"`          // retry budget for transient failures
	RetryDelay      int      `yaml:"retry_delay"`      // seconds, scaled by attempt number
	ChangeThreshold float64  `yaml:"change_threshold"` // fraction of previous snapshot
	DetectChanges   bool     `yaml:"detect_changes"`
	Database        string   `yaml:"database"`  // sqlite path
	Inventory       string   `yaml:"inventory"` // hosts file path
	Broker          string   `yaml:"broker"`    // AMQP url, used by the queue-driven binaries
	OutputConfig    string   `yaml:"output_config"`    // skogul config, blank disables emission
	Community       string   `yaml:"community"`        // SNMP community for vendor identification
	MibPaths        []string `yaml:"mib_paths"`
	MibModules      []string `yaml:"mib_modules"`
	Debug           bool     `yaml:"debug"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Workers:         10,
		Timeout:         60,
		Interval:        3600,
		Retries:         2,
		RetryDelay:      2,
		ChangeThreshold: 0.1,
		DetectChanges:   true,
		Database:        "vardr.db",
		Inventory:       "inventory/hosts.yaml",
		Community:       "public",
		MibModules:      []string{"SNMPv2-MIB"},
	}
}

// ParseFile reads a YAML config file on top of the defaults.
func ParseFile(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.ChangeThreshold < 0 {
		return nil, fmt.Errorf("config: change_threshold must not be negative, got %f", c.ChangeThreshold)
	}
	return &c, nil
}

// DeviceTimeout is the per-device collection deadline.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CollectionInterval is the pause between scheduled collections.
func (c *Config) CollectionInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Backoff is the delay before retry number attempt+1. Linear, not
// fancy: transient network blips don't need more.
func (c *Config) Backoff(attempt int) time.Duration {
	return time.Duration(c.RetryDelay*(attempt+1)) * time.Second
}
