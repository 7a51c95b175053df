package rib

import (
	"errors"
	"testing"

	"github.com/telenornms/vardr"
)

var juniperRouteOutput = `inet.0: 5 destinations, 6 routes (6 active, 0 holddown, 0 hidden)
+ = Active Route, - = Last Active, * = Both

10.0.0.0/24        *[BGP/170] 3d 02:30:12, MED 0, localpref 100
                    > to 10.1.1.1 via ae0.100
10.0.1.0/24        *[OSPF/10] 01:30:00, metric 20
                    > to 10.1.2.1 via ge-0/0/1.0
10.0.2.0/24        *[Static/5]
                    > to 10.1.1.254 via ge-0/0/2.0
10.0.3.0/24        *[BGP/170] 2d 00:00:01
                    > to 10.1.1.1 via ae0.100
                      to 10.1.1.2 via ae1.100
10.1.1.0/24        *[Direct/0] 3w0d 01:00:00
                    > via ae0.100
`

func TestJuniperParseRoutes(t *testing.T) {
	routes, err := juniperParseRoutes(juniperRouteOutput, DefaultVRF)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(routes) != 6 {
		t.Fatalf("expected 6 routes, got %d: %v", len(routes), routes)
	}

	bgp := routes[0]
	if bgp.Protocol != "bgp" || bgp.Destination.String() != "10.0.0.0/24" ||
		bgp.NextHop.String() != "10.1.1.1" || bgp.Distance != 170 || bgp.Interface != "ae0.100" {
		t.Errorf("bgp route parsed wrong: %+v", bgp)
	}
	if bgp.Metric != vardr.NoValue {
		t.Errorf("bgp route without metric should carry NoValue, got %d", bgp.Metric)
	}

	ospf := routes[1]
	if ospf.Protocol != "ospf" || ospf.Metric != 20 || ospf.Distance != 10 {
		t.Errorf("ospf route parsed wrong: %+v", ospf)
	}

	if routes[2].Protocol != "static" || routes[2].Distance != 5 {
		t.Errorf("static route parsed wrong: %+v", routes[2])
	}

	// 10.0.3.0/24 has two equal-cost next hops.
	if routes[3].Destination != routes[4].Destination {
		t.Fatalf("equal-cost paths should share the destination: %+v %+v", routes[3], routes[4])
	}
	if routes[3].NextHop.String() != "10.1.1.1" || routes[4].NextHop.String() != "10.1.1.2" {
		t.Errorf("equal-cost next hops wrong: %s %s", routes[3].NextHop, routes[4].NextHop)
	}
	if routes[4].Interface != "ae1.100" {
		t.Errorf("second path interface wrong: %q", routes[4].Interface)
	}

	direct := routes[5]
	if direct.Protocol != "direct" || direct.NextHop.IsValid() || direct.Interface != "ae0.100" {
		t.Errorf("direct route parsed wrong: %+v", direct)
	}
}

func TestJuniperParseTruncated(t *testing.T) {
	out := "10.0.9.0/24        *[BGP\n"
	_, err := juniperParseRoutes(out, DefaultVRF)
	var pe *vardr.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestJuniperHopWithoutRoute(t *testing.T) {
	out := "> to 10.1.1.1 via ae0.100\n"
	if _, err := juniperParseRoutes(out, DefaultVRF); err == nil {
		t.Fatalf("expected error for hop line without a route entry")
	}
}

func TestJuniperParseVRFs(t *testing.T) {
	out := `Instance             Type
         Primary RIB                                     Active/holddown/hidden
master               forwarding
         inet.0                                          5/0/0
CUST-A               vrf
         CUST-A.inet.0                                   3/0/0
CUST-B               vrf              65000:200
         CUST-B.inet.0                                   2/0/0
`
	vrfs, err := juniperParseVRFs(out)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(vrfs) != 3 {
		t.Fatalf("expected default + 2 instances, got %d: %v", len(vrfs), vrfs)
	}
	if vrfs[0].Name != DefaultVRF {
		t.Errorf("first vrf should be %s", DefaultVRF)
	}
	if vrfs[1].Name != "CUST-A" || vrfs[1].RD != "" {
		t.Errorf("CUST-A parsed wrong: %+v", vrfs[1])
	}
	if vrfs[2].Name != "CUST-B" || vrfs[2].RD != "65000:200" {
		t.Errorf("CUST-B parsed wrong: %+v", vrfs[2])
	}
}

func TestJuniperRouteCommands(t *testing.T) {
	d, err := Lookup("juniper", "juniper_junos")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got := d.RouteCmd(DefaultVRF); got != "show route" {
		t.Errorf("default route command wrong: %q", got)
	}
	if got := d.RouteCmd("CUST-A"); got != "show route table CUST-A.inet.0" {
		t.Errorf("vrf route command wrong: %q", got)
	}
}
