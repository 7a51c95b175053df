/*
 * vardr huawei rib parsing
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

var huaweiProtocols = map[string]string{
	"B":       "bgp",
	"BGP":     "bgp",
	"O":       "ospf",
	"OSPF":    "ospf",
	"O_INTRA": "ospf-intra",
	"O_INTER": "ospf-inter",
	"O_ASE":   "ospf-ase",
	"O_NSSA":  "ospf-nssa",
	"S":       "static",
	"STATIC":  "static",
	"C":       "connected",
	"D":       "direct",
	"DIRECT":  "direct",
	"L":       "local",
	"R":       "rip",
	"RIP":     "rip",
	"I":       "isis",
	"ISIS":    "isis",
	"U":       "user",
}

// VRP route tables are columnar:
//
//	Proto  Destination/Mask    NextHop         Flags Pre  Cost   Interface
//	B      10.1.1.0/24         192.168.1.1     RD    255  0      GE0/0/1
func huaweiParseRoutes(out string, vrf string) ([]vardr.Route, error) {
	var routes []vardr.Route
	for _, raw := range strings.Split(Clean(out), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Route Flags:") || strings.HasPrefix(line, "---") ||
			strings.HasPrefix(line, "Routing Table") || strings.HasPrefix(line, "Routing Tables") ||
			strings.HasPrefix(line, "Destinations :") || strings.Contains(line, "Destination/Mask") ||
			strings.HasPrefix(line, "Proto") {
			continue
		}
		fields := strings.Fields(line)
		// A route line is a protocol code followed by a prefix. A
		// known code with only the start of a destination after it,
		// or fewer than the full seven columns, means the dump was
		// cut off mid-entry.
		if len(fields) < 2 {
			continue
		}
		if !strings.Contains(fields[1], "/") {
			_, known := huaweiProtocols[strings.ToUpper(fields[0])]
			if known && fields[1][0] >= '0' && fields[1][0] <= '9' {
				return nil, parseErr("huawei", line, "truncated route entry")
			}
			continue
		}
		if len(fields) < 7 {
			return nil, parseErr("huawei", line, "truncated route entry")
		}
		dst, err := parseNetwork(fields[1])
		if err != nil {
			return nil, parseErr("huawei", line, "bad destination network")
		}
		r := vardr.Route{
			Destination: dst,
			Protocol:    normalize(huaweiProtocols, "huawei", fields[0]),
			Distance:    atoiOr(fields[4], vardr.NoValue),
			Metric:      atoiOr(fields[5], vardr.NoValue),
			VRF:         vrf,
		}
		if nh, err := netip.ParseAddr(fields[2]); err == nil && !nh.IsUnspecified() {
			r.NextHop = nh
		}
		if fields[6] != "NULL0" {
			r.Interface = fields[6]
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func huaweiParseVRFs(out string) ([]VRF, error) {
	vrfs := []VRF{{Name: DefaultVRF}}
	started := false
	for _, raw := range strings.Split(Clean(out), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if !started {
			if strings.Contains(line, "VPN-Instance") && strings.Contains(line, "RD") {
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
	register(Driver{
		Vendor:     "huawei",
		VRFListCmd: func() string { return "display ip vpn-instance" },
		RouteCmd: func(vrf string) string {
			if vrf == DefaultVRF {
				return "display ip routing-table"
			}
			return "display ip routing-table vpn-instance " + vrf
		},
		ParseVRFs:   huaweiParseVRFs,
		ParseRoutes: huaweiParseRoutes,
	}, "huawei", "huawei_vrp")
}
