/*
 * vardr rib parsing
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
Package rib maps vendor/platform tags to the CLI commands that
enumerate VRFs and dump route tables, and parses the raw output into
canonical vardr.Route records.

Vendors are a lookup table of Driver capability sets, not a type
hierarchy: supporting a new vendor means registering one more entry.
Platform tags (cisco_xr) win over vendor tags (cisco) so platform
families with diverging CLIs stay one-entry cheap too.
*/
package rib

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/telenornms/vardr"
)

// DefaultVRF is the name we file the global routing table under.
// Devices with zero explicit VRFs still yield this one.
const DefaultVRF = "default"

// VRF is one routing instance as reported by the device.
type VRF struct {
	Name        string
	RD          string // route distinguisher, blank when not set
	Description string
}

// Driver is the capability set for one vendor or platform family:
// the commands to run and the parsers for their output.
type Driver struct {
	Vendor      string
	VRFListCmd  func() string
	RouteCmd    func(vrf string) string
	ParseVRFs   func(out string) ([]VRF, error)
	ParseRoutes func(out string, vrf string) ([]vardr.Route, error)
}

var drivers = map[string]Driver{}

func register(d Driver, tags ...string) {
	for _, t := range tags {
		drivers[t] = d
	}
}

// Lookup resolves a driver, trying the platform tag before falling
// back to the bare vendor tag.
func Lookup(vendor, platform string) (Driver, error) {
	if d, ok := drivers[platform]; ok {
		return d, nil
	}
	if d, ok := drivers[vendor]; ok {
		return d, nil
	}
	return Driver{}, fmt.Errorf("no driver for vendor %q platform %q", vendor, platform)
}

// rx is MustCompile with a name short enough to keep the grammar
// tables readable.
func rx(s string) *regexp.Regexp {
	return regexp.MustCompile(s)
}

var (
	ansiRe    = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	pagingRe  = regexp.MustCompile(`(?m)^[ \t]*-+ ?[Mm]ore ?-+.*$`)
	backspace = regexp.MustCompile(`.\x08`)
)

// Clean strips ANSI escapes, pager artifacts and carriage returns
// from raw CLI output. Terminal servers and device pagers decorate
// output in ways the grammars must never see.
func Clean(out string) string {
	out = ansiRe.ReplaceAllString(out, "")
	for backspace.MatchString(out) {
		out = backspace.ReplaceAllString(out, "")
	}
	out = pagingRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "\r", "")
	lines := strings.Split(out, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}

// parseNetwork turns "10.0.0.0/24", "10.0.0.0 255.255.255.0" or a
// bare host address into a prefix. Bare addresses are host routes.
func parseNetwork(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	fields := strings.Fields(s)
	if len(fields) == 2 {
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			return netip.Prefix{}, err
		}
		bits, err := maskBits(fields[1])
		if err != nil {
			return netip.Prefix{}, err
		}
		return addr.Prefix(bits)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return addr.Prefix(addr.BitLen())
}

func maskBits(mask string) (int, error) {
	addr, err := netip.ParseAddr(mask)
	if err != nil {
		return 0, fmt.Errorf("bad netmask %q: %w", mask, err)
	}
	bits := 0
	for _, b := range addr.AsSlice() {
		for ; b > 0; b <<= 1 {
			if b&0x80 == 0 {
				return 0, fmt.Errorf("non-contiguous netmask %q", mask)
			}
			bits++
		}
	}
	return bits, nil
}

// normalize maps a vendor protocol code through its table. Unknown
// codes come back as "unknown" rather than dropping the route: a
// route we can't classify is still a route the device forwards on.
func normalize(codes map[string]string, vendor, code string) string {
	code = strings.Trim(code, "*")
	if p, ok := codes[strings.ToUpper(code)]; ok {
		return p
	}
	vardr.Logf("%s: unrecognized protocol %q, tagging route as unknown", vendor, code)
	return "unknown"
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseErr builds the ParseError for one offending line.
func parseErr(vendor, line, reason string) error {
	return &vardr.ParseError{Vendor: vendor, Line: line, Reason: reason}
}
