/*
 * vardr snmp probe
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
Package probe identifies devices over SNMP. When the inventory doesn't
say what a box is, one Get of sysDescr/sysName usually does: every
vendor stamps its OS name into sysDescr.
*/
package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/telenornms/vardr"
	"github.com/telenornms/vardr/mib"
)

var (
	oidSysDescr = "1.3.6.1.2.1.1.1"
	oidSysName  = "1.3.6.1.2.1.1.5"
)

// Facts is what the probe learned about a device.
type Facts struct {
	Name  string // sysName
	Descr string // sysDescr, raw
}

// Gather fetches sysDescr and sysName from target. If a mib config is
// given the OIDs are resolved through it, mostly to exercise the MIB
// path early and fail loudly on broken MIB setups.
func Gather(target, community string, m *mib.Config) (Facts, error) {
	descr, name := oidSysDescr, oidSysName
	if m != nil {
		if n, err := m.Lookup("sysDescr"); err == nil {
			descr = n.Numeric
		}
		if n, err := m.Lookup("sysName"); err == nil {
			name = n.Numeric
		}
	}

	s := &gosnmp.GoSNMP{
		Target:             target,
		Port:               161,
		Transport:          "udp",
		Community:          community,
		Version:            gosnmp.Version2c,
		Timeout:            time.Duration(3) * time.Second,
		Retries:            1,
		ExponentialTimeout: true,
		MaxOids:            gosnmp.MaxOids,
	}
	if err := s.Connect(); err != nil {
		return Facts{}, fmt.Errorf("%w: snmp connect %s: %s", vardr.ErrConnection, target, err)
	}
	defer s.Conn.Close()

	// Scalar instances, so .0.
	result, err := s.Get([]string{descr + ".0", name + ".0"})
	if err != nil {
		return Facts{}, fmt.Errorf("%w: snmp get %s: %s", vardr.ErrConnection, target, err)
	}
	var f Facts
	for _, v := range result.Variables {
		b, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.TrimPrefix(v.Name, "."), strings.TrimPrefix(descr, ".")) {
			f.Descr = string(b)
		} else {
			f.Name = string(b)
		}
	}
	return f, nil
}

// Vendor classifies a sysDescr into the vendor tags the rib drivers
// register under. Blank when nothing matches.
func Vendor(descr string) string {
	d := strings.ToLower(descr)
	switch {
	case strings.Contains(d, "cisco"):
		return "cisco"
	case strings.Contains(d, "junos") || strings.Contains(d, "juniper"):
		return "juniper"
	case strings.Contains(d, "huawei") || strings.Contains(d, "vrp"):
		return "huawei"
	}
	return ""
}

// Platform refines the vendor tag with the OS family when sysDescr
// gives it away.
func Platform(descr string) string {
	d := strings.ToLower(descr)
	switch {
	case strings.Contains(d, "ios xr") || strings.Contains(d, "ios-xr"):
		return "cisco_xr"
	case strings.Contains(d, "ios xe") || strings.Contains(d, "ios-xe"):
		return "cisco_xe"
	case strings.Contains(d, "cisco ios"):
		return "cisco_ios"
	case strings.Contains(d, "junos"):
		return "juniper_junos"
	case strings.Contains(d, "vrp"):
		return "huawei_vrp"
	}
	return ""
}
