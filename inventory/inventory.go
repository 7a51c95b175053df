/*
 * vardr inventory
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

/*
Package inventory deals with loading the device inventory and with
host-level run locking.

The hosts file is a YAML map of device name to attributes, the same
shape the nornir-style inventories we already maintain use. Only
vendor, platform, hostname and credentials are interpreted; groups
and the data bag pass through opaquely to the store.
*/
package inventory

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Device is one inventory entry. Immutable during a run.
type Device struct {
	Name     string            `yaml:"-"`
	Hostname string            `yaml:"hostname"` // address to connect to
	Port     int               `yaml:"port"`
	Vendor   string            `yaml:"vendor"`   // blank means: identify over SNMP
	Platform string            `yaml:"platform"` // e.g. cisco_ios, juniper_junos
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Groups   []string          `yaml:"groups"`
	Data     map[string]string `yaml:"data"`
}

// Addr is the dial target, with the default SSH port filled in.
func (d Device) Addr() string {
	port := d.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", d.Hostname, port)
}

// Load reads a hosts file. Devices come back sorted by name so
// iteration order is stable, though collection order still isn't
// guaranteed once the workers get hold of them.
func Load(path string) ([]Device, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inventory read: %w", err)
	}
	raw := map[string]Device{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("inventory parse: %w", err)
	}
	devices := make([]Device, 0, len(raw))
	for name, d := range raw {
		if d.Hostname == "" {
			return nil, fmt.Errorf("inventory: device %q has no hostname", name)
		}
		d.Name = name
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

var targets sync.Map

// Lock acquires a host-level lock so two runs never share a device
// session, even if the scheduler overlaps batches. Must call Unlock
// when done.
func Lock(name string) error {
	_, loaded := targets.LoadOrStore(name, 1)
	if loaded {
		return fmt.Errorf("target %s still locked, refusing to start more runs", name)
	}
	return nil
}

// Unlock releases the host-level lock.
func Unlock(name string) {
	targets.Delete(name)
}
