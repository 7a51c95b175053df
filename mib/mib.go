/*
 * vardr smi-pain
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

package mib

/*
Package mib handles loading MIB files and modules (SMI)-stuff for the
SNMP-based vendor probe.

While this is based on gosmi, we try to hide as much of that as
possible because it's not unlikely that it'll be switched.
*/

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/sleepinggenius2/gosmi"
	"github.com/sleepinggenius2/gosmi/types"
	"github.com/telenornms/vardr"
)

// Config provides the configuration basis for the mib package, and
// everything is dealt with on that basis, even if gosmi is
// technically mostly working on a global scope.
type Config struct {
	Modules []string // SMI modules to load
	Paths   []string // Paths to the modules
}

// Node is a resolved OID with both the numeric and symbolic
// renderings attached.
type Node struct {
	Key       string // the item as requested
	Numeric   string
	Name      string
	Qualified string
}

// cache is an internal OID-cache for Nodes, to avoid expensive
// SMI-lookups for what is most likely very repetitive lookups. So far,
// extremely simple with no LRU or anything.
var cache sync.Map

// Init loads MIB files from disk and the configured list of modules.
func (c *Config) Init() error {
	gosmi.Init()

	for _, path := range c.Paths {
		vardr.Logf("mib path added: %s", path)
		gosmi.AppendPath(path)
	}
	for _, module := range c.Modules {
		moduleName, err := gosmi.LoadModule(module)
		if err != nil {
			return fmt.Errorf("module load failed: %w", err)
		}
		vardr.Debugf("loaded SMI module %s", moduleName)
	}
	return nil
}

var numericRe = regexp.MustCompile(`^[0-9.]+$`)

// Lookup resolves a symbolic or numeric item to a Node.
func (c *Config) Lookup(item string) (Node, error) {
	if chit, ok := cache.Load(item); ok {
		cast, _ := chit.(*Node)
		return *cast, nil
	}
	var ret Node
	// We set this early because there's currently no reason to assume
	// a cache miss will magically become a cache hit later.
	// XXX: When we DO deal with internal reloading, we need to nuke
	// this cache.
	cache.Store(item, &ret)
	ret.Key = item
	var n gosmi.SmiNode
	var err error
	if numericRe.MatchString(item) {
		oid, oerr := types.OidFromString(item)
		if oerr != nil {
			return ret, fmt.Errorf("unable to parse numeric OID: %w", oerr)
		}
		n, err = gosmi.GetNodeByOID(oid)
	} else {
		n, err = gosmi.GetNode(item)
	}
	if err != nil {
		return ret, fmt.Errorf("gosmi.GetNode failed: %w", err)
	}
	ret.Numeric = n.RenderNumeric()
	ret.Name = n.Render(types.RenderName)
	ret.Qualified = n.RenderQualified()
	return ret, nil
}
