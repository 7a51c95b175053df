/*
 * vardr change detection
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
Package detect compares two route snapshots of the same device/VRF
and produces the ordered change list between them.

It's deliberately a pure function over in-memory slices: no store, no
sessions, no clock. Everything interesting about it can be unit
tested with two literal slices.
*/
package detect

import (
	"sort"

	"github.com/telenornms/vardr"
)

const (
	Added    = "added"
	Removed  = "removed"
	Modified = "modified"
)

// Change is one detected difference between two snapshots. Previous
// and New are nil for change types that don't have them.
type Change struct {
	Type     string
	VRF      string
	Network  string // destination in CIDR notation
	Previous *vardr.Route
	New      *vardr.Route
}

// Changes partitions the differences between the previous and current
// snapshot into added, removed and modified. Routes are identified by
// (destination, prefix length, next hop, protocol); equal keys with
// differing metric, distance or interface count as modified.
//
// An empty previous snapshot yields an empty change list. That covers
// the cold start: flooding the change log with one "added" per route
// on a device's first ever collection helps nobody.
//
// Output is sorted by destination ascending (then next hop, then
// type) so repeated runs over the same data log identically.
func Changes(previous, current []vardr.Route) []Change {
	if len(previous) == 0 {
		return nil
	}
	prev := index(previous)
	cur := index(current)

	var out []Change
	for k, r := range cur {
		p, ok := prev[k]
		if !ok {
			out = append(out, Change{Type: Added, VRF: r.VRF, Network: r.Network(), New: r})
			continue
		}
		if differ(p, r) {
			out = append(out, Change{Type: Modified, VRF: r.VRF, Network: r.Network(), Previous: p, New: r})
		}
	}
	for k, p := range prev {
		if _, ok := cur[k]; !ok {
			out = append(out, Change{Type: Removed, VRF: p.VRF, Network: p.Network(), Previous: p})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := route(out[i]), route(out[j])
		if c := a.Destination.Addr().Compare(b.Destination.Addr()); c != 0 {
			return c < 0
		}
		if a.Destination.Bits() != b.Destination.Bits() {
			return a.Destination.Bits() < b.Destination.Bits()
		}
		if c := a.NextHop.Compare(b.NextHop); c != 0 {
			return c < 0
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Significant reports whether the change volume crosses the
// threshold, relative to the previous snapshot's size. Informational
// only: it never suppresses the individual deltas.
func Significant(changes, previousTotal int, threshold float64) bool {
	if previousTotal < 1 {
		previousTotal = 1
	}
	return float64(changes)/float64(previousTotal) > threshold
}

func index(routes []vardr.Route) map[vardr.RouteKey]*vardr.Route {
	m := make(map[vardr.RouteKey]*vardr.Route, len(routes))
	for i := range routes {
		m[routes[i].Key()] = &routes[i]
	}
	return m
}

func differ(a, b *vardr.Route) bool {
	return a.Metric != b.Metric || a.Distance != b.Distance || a.Interface != b.Interface
}

// route picks whichever side of the change carries the route, for
// sorting purposes.
func route(c Change) *vardr.Route {
	if c.New != nil {
		return c.New
	}
	return c.Previous
}
