/*
 * vardr shared contracts
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
	"context"
	"net/netip"
)

// NoValue marks a numeric route attribute the device didn't report.
// Keeps a real metric of 0 distinguishable from "not present".
const NoValue = -1

// Route is one canonical route entry as parsed from vendor CLI
// output. It's defined up here rather than in the rib sub-package to
// avoid circular dependencies: parsers produce it, the detector
// compares it and the store persists it.
type Route struct {
	Destination netip.Prefix
	NextHop     netip.Addr // zero value when the route has no next hop
	Protocol    string
	Metric      int
	Distance    int // administrative distance / preference
	Interface   string
	VRF         string
}

// RouteKey is the identity of a route within one snapshot. Two routes
// with the same key are the same route; differing non-key attributes
// mean the route was modified between snapshots.
type RouteKey struct {
	Destination netip.Prefix
	NextHop     netip.Addr
	Protocol    string
}

func (r Route) Key() RouteKey {
	return RouteKey{Destination: r.Destination, NextHop: r.NextHop, Protocol: r.Protocol}
}

// Network renders the destination in CIDR notation.
func (r Route) Network() string {
	return r.Destination.String()
}

// Runner executes a single CLI command against a device, honoring the
// context deadline. Today only session.Session implements it, but the
// orchestrator is written against this so tests can feed it canned
// output.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}
