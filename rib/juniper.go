/*
 * vardr juniper rib parsing
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
package rib

import (
	"net/netip"
	"strings"

	"github.com/telenornms/vardr"
)

// JunOS spells protocols out, so the table maps full names instead of
// one-letter codes.
var juniperProtocols = map[string]string{
	"BGP":             "bgp",
	"OSPF":            "ospf",
	"OSPF3":           "ospf3",
	"STATIC":          "static",
	"DIRECT":          "direct",
	"LOCAL":           "local",
	"IS-IS":           "isis",
	"ISIS":            "isis",
	"RIP":             "rip",
	"AGGREGATE":       "aggregate",
	"EVPN":            "evpn",
	"MPLS":            "mpls",
	"LDP":             "ldp",
	"ACCESS-INTERNAL": "access-internal",
}

var (
	// 10.1.1.0/24        *[BGP/170] 3d 02:30:12, MED 0, localpref 100
	juniperDest  = rx(`^(\d+\.\d+\.\d+\.\d+/\d+)(\s+(.*))?$`)
	juniperProto = rx(`^[*+-]?\[([A-Za-z0-9-]+)/(\d+)\]`)
	// > to 10.0.0.1 via ae0.100
	juniperTo     = rx(`\bto\s+(\S+)\s+via\s+(\S+)`)
	juniperVia    = rx(`\bvia\s+(\S+)`)
	juniperMetric = rx(`\bmetric\s+(\d+)`)
)

type juniperState struct {
	vrf     string
	dest    netip.Prefix
	haveDst bool
	pending *vardr.Route // protocol line seen, no hop emitted yet
	last    vardr.Route  // template for additional equal-cost hops
	haveTpl bool
	routes  []vardr.Route
}

func (st *juniperState) flush() {
	if st.pending != nil {
		st.routes = append(st.routes, *st.pending)
		st.pending = nil
	}
}

// protoLine handles the "*[BGP/170] ..." part, which may or may not
// carry the next hop on the same line.
func (st *juniperState) protoLine(line string) error {
	m := juniperProto.FindStringSubmatch(line)
	if m == nil {
		return parseErr("juniper", line, "truncated route entry")
	}
	st.flush()
	r := vardr.Route{
		Destination: st.dest,
		Protocol:    normalize(juniperProtocols, "juniper", m[1]),
		Distance:    atoiOr(m[2], vardr.NoValue),
		Metric:      vardr.NoValue,
		VRF:         st.vrf,
	}
	if mm := juniperMetric.FindStringSubmatch(line); mm != nil {
		r.Metric = atoiOr(mm[1], vardr.NoValue)
	}
	st.pending = &r
	if strings.Contains(line, " via ") || strings.Contains(line, " to ") {
		return st.hopLine(line)
	}
	return nil
}

// hopLine handles "> to NH via IF" continuations. Several of them
// under one protocol line mean equal-cost next hops: one route record
// per hop.
func (st *juniperState) hopLine(line string) error {
	var r vardr.Route
	switch {
	case st.pending != nil:
		r = *st.pending
		st.pending = nil
	case st.haveTpl:
		r = st.last
	default:
		return parseErr("juniper", line, "next hop without a route entry")
	}
	if m := juniperTo.FindStringSubmatch(line); m != nil {
		nh, err := netip.ParseAddr(m[1])
		if err != nil {
			return parseErr("juniper", line, "bad next hop")
		}
		r.NextHop = nh
		r.Interface = m[2]
	} else if m := juniperVia.FindStringSubmatch(line); m != nil {
		r.NextHop = netip.Addr{}
		r.Interface = m[1]
	} else {
		return parseErr("juniper", line, "truncated route entry")
	}
	st.routes = append(st.routes, r)
	st.last = r
	st.haveTpl = true
	return nil
}

func juniperParseRoutes(out string, vrf string) ([]vardr.Route, error) {
	st := juniperState{vrf: vrf}
	for _, raw := range strings.Split(Clean(out), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "+ =") ||
			strings.Contains(line, "destinations") || strings.Contains(line, "Destination") {
			continue
		}
		if m := juniperDest.FindStringSubmatch(line); m != nil {
			st.flush()
			dst, err := netip.ParsePrefix(m[1])
			if err != nil {
				return nil, parseErr("juniper", line, "bad destination network")
			}
			st.dest = dst
			st.haveDst = true
			if m[3] != "" {
				if err := st.protoLine(m[3]); err != nil {
					return nil, err
				}
			}
			continue
		}
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "*[") ||
			strings.HasPrefix(line, "+[") || strings.HasPrefix(line, "-[") {
			if !st.haveDst {
				return nil, parseErr("juniper", line, "route entry without a destination")
			}
			if err := st.protoLine(line); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, ">") || strings.HasPrefix(line, "to ") ||
			strings.HasPrefix(line, "via ") {
			if err := st.hopLine(line); err != nil {
				return nil, err
			}
			continue
		}
	}
	st.flush()
	return st.routes, nil
}

func juniperParseVRFs(out string) ([]VRF, error) {
	vrfs := []VRF{{Name: DefaultVRF}}
	rdRe := rx(`^\d+(\.\d+\.\d+\.\d+)?:\d+$`)
	for _, raw := range strings.Split(Clean(out), "\n") {
		if raw == "" || strings.HasPrefix(raw, "Instance") {
			continue
		}
		// Indented lines are per-RIB detail under an instance.
		if strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t") {
			continue
		}
		fields := strings.Fields(raw)
		if len(fields) == 0 || fields[0] == "master" {
			continue
		}
		v := VRF{Name: fields[0]}
		for _, f := range fields[1:] {
			if rdRe.MatchString(f) {
				v.RD = f
				break
			}
		}
		vrfs = append(vrfs, v)
	}
	return vrfs, nil
}

func init() {
	register(Driver{
		Vendor:     "juniper",
		VRFListCmd: func() string { return "show route instance" },
		RouteCmd: func(vrf string) string {
			if vrf == DefaultVRF {
				return "show route"
			}
			return "show route table " + vrf + ".inet.0"
		},
		ParseVRFs:   juniperParseVRFs,
		ParseRoutes: juniperParseRoutes,
	}, "juniper", "juniper_junos")
}
