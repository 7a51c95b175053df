/*
 * vardr cisco rib parsing
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

var ciscoProtocols = map[string]string{
	"B":  "bgp",
	"O":  "ospf",
	"IA": "ospf-ia",
	"E1": "ospf-e1",
	"E2": "ospf-e2",
	"N1": "ospf-nssa-e1",
	"N2": "ospf-nssa-e2",
	"S":  "static",
	"C":  "connected",
	"L":  "local",
	"R":  "rip",
	"D":  "eigrp",
	"EX": "eigrp-external",
	"I":  "isis",
	"L1": "isis-l1",
	"L2": "isis-l2",
	"M":  "mobile",
}

var (
	// B    10.1.1.0/24 [200/0] via 192.168.1.1, 3d01h, GigabitEthernet0/1
	ciscoVia = rx(`^(\*?[A-Za-z][A-Za-z0-9]?\*?(?:\s+(?:E1|E2|IA|N1|N2|L1|L2|EX))?)\s+(\S+)\s+\[(\d+)/(\d+)\]\s+via\s+(\S+?),?(?:\s+[0-9][0-9:dwhm]*)?(?:,\s+(\S+))?$`)
	// C    192.168.1.0/24 is directly connected, GigabitEthernet0/0
	ciscoConnected = rx(`^(\*?[CL]\*?)\s+(\S+)\s+is directly connected,\s+(\S+)$`)
	// additional equal-cost next hop:  [200/0] via 192.168.1.2
	ciscoCont = rx(`^\[(\d+)/(\d+)\]\s+via\s+(\S+?),?(?:\s+[0-9][0-9:dwhm]*)?(?:,\s+(\S+))?$`)
	// anything that begins like a route entry: a protocol code
	// followed by at least the start of a destination. A dump cut off
	// mid-destination ("B     10.1.") must still trip this.
	ciscoStart = rx(`^\*?[A-Za-z][A-Za-z0-9]?\*?(?:\s+(?:E1|E2|IA|N1|N2|L1|L2|EX))?\s+\d[\d.]*(?:/\d*)?(\s|$)`)
	// subnet summary header, not a route:
	// 10.0.0.0/8 is variably subnetted, 2 subnets, 2 masks
	ciscoSummary = rx(`is (?:variably )?subnetted`)
)

// ciscoCode picks the protocol code to normalize. Two-token codes
// like "O E2" classify by the subtype token.
func ciscoCode(code string) string {
	fields := strings.Fields(code)
	if len(fields) == 2 {
		return fields[1]
	}
	return code
}

func ciscoParseRoutes(out string, vrf string) ([]vardr.Route, error) {
	var routes []vardr.Route
	var current *vardr.Route
	for _, line := range strings.Split(Clean(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Codes:") ||
			strings.HasPrefix(line, "Gateway") || ciscoSummary.MatchString(line) {
			continue
		}
		if m := ciscoVia.FindStringSubmatch(line); m != nil {
			dst, err := parseNetwork(m[2])
			if err != nil {
				return nil, parseErr("cisco", line, "bad destination network")
			}
			nh, err := netip.ParseAddr(m[5])
			if err != nil {
				return nil, parseErr("cisco", line, "bad next hop")
			}
			r := vardr.Route{
				Destination: dst,
				NextHop:     nh,
				Protocol:    normalize(ciscoProtocols, "cisco", ciscoCode(m[1])),
				Distance:    atoiOr(m[3], vardr.NoValue),
				Metric:      atoiOr(m[4], vardr.NoValue),
				Interface:   m[6],
				VRF:         vrf,
			}
			routes = append(routes, r)
			current = &routes[len(routes)-1]
			continue
		}
		if m := ciscoConnected.FindStringSubmatch(line); m != nil {
			dst, err := parseNetwork(m[2])
			if err != nil {
				return nil, parseErr("cisco", line, "bad destination network")
			}
			r := vardr.Route{
				Destination: dst,
				Protocol:    normalize(ciscoProtocols, "cisco", m[1]),
				Distance:    vardr.NoValue,
				Metric:      vardr.NoValue,
				Interface:   m[3],
				VRF:         vrf,
			}
			routes = append(routes, r)
			current = &routes[len(routes)-1]
			continue
		}
		if strings.HasPrefix(line, "[") {
			m := ciscoCont.FindStringSubmatch(line)
			if m == nil {
				return nil, parseErr("cisco", line, "truncated route entry")
			}
			if current == nil {
				return nil, parseErr("cisco", line, "next hop without a route entry")
			}
			nh, err := netip.ParseAddr(m[3])
			if err != nil {
				return nil, parseErr("cisco", line, "bad next hop")
			}
			r := *current
			r.NextHop = nh
			r.Distance = atoiOr(m[1], vardr.NoValue)
			r.Metric = atoiOr(m[2], vardr.NoValue)
			if m[4] != "" {
				r.Interface = m[4]
			}
			routes = append(routes, r)
			continue
		}
		if ciscoStart.MatchString(line) {
			// Looks like a route entry but doesn't complete as one.
			// The typical cause is a dump cut off by a command
			// timeout, which must not silently shrink the snapshot.
			return nil, parseErr("cisco", line, "truncated route entry")
		}
	}
	return routes, nil
}

func ciscoParseVRFs(out string) ([]VRF, error) {
	vrfs := []VRF{{Name: DefaultVRF}}
	started := false
	for _, line := range strings.Split(Clean(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !started {
			if strings.HasPrefix(line, "Name") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		v := VRF{Name: fields[0]}
		if len(fields) > 1 && strings.Contains(fields[1], ":") {
			v.RD = fields[1]
		}
		vrfs = append(vrfs, v)
	}
	return vrfs, nil
}

func init() {
	ios := Driver{
		Vendor:     "cisco",
		VRFListCmd: func() string { return "show vrf" },
		RouteCmd: func(vrf string) string {
			if vrf == DefaultVRF {
				return "show ip route"
			}
			return "show ip route vrf " + vrf
		},
		ParseVRFs:   ciscoParseVRFs,
		ParseRoutes: ciscoParseRoutes,
	}
	register(ios, "cisco", "cisco_ios", "cisco_xe")

	// IOS XR shares the route grammar but not the commands.
	xr := ios
	xr.VRFListCmd = func() string { return "show vrf all" }
	xr.RouteCmd = func(vrf string) string {
		if vrf == DefaultVRF {
			return "show route"
		}
		return "show route vrf " + vrf
	}
	register(xr, "cisco_xr")
}
