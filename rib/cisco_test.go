package rib

import (
	"errors"
	"testing"

	"github.com/telenornms/vardr"
)

var ciscoRouteOutput = `Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP
       D - EIGRP, EX - EIGRP external, O - OSPF, IA - OSPF inter area

Gateway of last resort is 10.0.0.1 to network 0.0.0.0

S*    0.0.0.0/0 [1/0] via 10.0.0.1
      10.0.0.0/8 is variably subnetted, 2 subnets, 2 masks
B     10.1.1.0/24 [200/0] via 192.168.1.1, 3d01h, GigabitEthernet0/1
O E2  10.3.0.0/16 [110/20] via 10.0.0.2, 00:10:11, Vlan10
C     192.168.1.0/24 is directly connected, GigabitEthernet0/0
L     192.168.1.1/32 is directly connected, GigabitEthernet0/0
`

func TestCiscoParseRoutes(t *testing.T) {
	routes, err := ciscoParseRoutes(ciscoRouteOutput, DefaultVRF)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(routes) != 5 {
		t.Fatalf("expected 5 routes, got %d: %v", len(routes), routes)
	}

	def := routes[0]
	if def.Protocol != "static" || def.Destination.String() != "0.0.0.0/0" ||
		def.NextHop.String() != "10.0.0.1" || def.Distance != 1 || def.Metric != 0 {
		t.Errorf("default route parsed wrong: %+v", def)
	}

	bgp := routes[1]
	if bgp.Protocol != "bgp" || bgp.Destination.String() != "10.1.1.0/24" ||
		bgp.NextHop.String() != "192.168.1.1" || bgp.Distance != 200 ||
		bgp.Metric != 0 || bgp.Interface != "GigabitEthernet0/1" {
		t.Errorf("bgp route parsed wrong: %+v", bgp)
	}

	if routes[2].Protocol != "ospf-e2" || routes[2].Distance != 110 || routes[2].Metric != 20 {
		t.Errorf("ospf e2 route parsed wrong: %+v", routes[2])
	}

	conn := routes[3]
	if conn.Protocol != "connected" || conn.NextHop.IsValid() ||
		conn.Interface != "GigabitEthernet0/0" || conn.Metric != vardr.NoValue {
		t.Errorf("connected route parsed wrong: %+v", conn)
	}
	if routes[4].Protocol != "local" || routes[4].Destination.String() != "192.168.1.1/32" {
		t.Errorf("local route parsed wrong: %+v", routes[4])
	}
	for _, r := range routes {
		if r.VRF != DefaultVRF {
			t.Errorf("route %s has vrf %q", r.Network(), r.VRF)
		}
	}
}

func TestCiscoParseEqualCostPaths(t *testing.T) {
	out := `B     10.2.0.0/16 [200/0] via 192.168.1.1, 3d01h
      [200/0] via 192.168.1.2, 3d01h
`
	routes, err := ciscoParseRoutes(out, DefaultVRF)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected one route per next hop, got %d", len(routes))
	}
	if routes[0].NextHop.String() != "192.168.1.1" || routes[1].NextHop.String() != "192.168.1.2" {
		t.Errorf("next hops wrong: %+v", routes)
	}
	if routes[0].Destination != routes[1].Destination {
		t.Errorf("equal-cost paths should share the destination")
	}
}

func TestCiscoParseUnknownProtocol(t *testing.T) {
	out := "Q     10.9.9.0/24 [99/1] via 10.0.0.9\n"
	routes, err := ciscoParseRoutes(out, DefaultVRF)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(routes) != 1 || routes[0].Protocol != "unknown" {
		t.Errorf("unrecognized protocol should become unknown, got %+v", routes)
	}
}

func TestCiscoParseTruncated(t *testing.T) {
	truncated := []string{
		"B     10.1.1.0/24 [200/0] vi\n", // cut after the destination
		"B     10.1.\n",                  // cut inside the destination
		"B     10.1.1.0/2\n",             // cut inside the prefix length
	}
	for _, out := range truncated {
		_, err := ciscoParseRoutes(out, DefaultVRF)
		if err == nil {
			t.Errorf("expected parse error for %q", out)
			continue
		}
		var pe *vardr.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("expected ParseError for %q, got %T: %v", out, err, err)
			continue
		}
		if pe.Vendor != "cisco" {
			t.Errorf("wrong vendor in parse error: %q", pe.Vendor)
		}
	}
}

func TestCiscoParseVRFs(t *testing.T) {
	out := `  Name                             Default RD            Protocols   Interfaces
  CUST-A                           65000:100             ipv4        Gi0/1
  CUST-B                           <not set>             ipv4        Gi0/2
`
	vrfs, err := ciscoParseVRFs(out)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(vrfs) != 3 {
		t.Fatalf("expected default + 2 vrfs, got %d: %v", len(vrfs), vrfs)
	}
	if vrfs[0].Name != DefaultVRF {
		t.Errorf("first vrf should be %s, got %s", DefaultVRF, vrfs[0].Name)
	}
	if vrfs[1].Name != "CUST-A" || vrfs[1].RD != "65000:100" {
		t.Errorf("CUST-A parsed wrong: %+v", vrfs[1])
	}
	if vrfs[2].Name != "CUST-B" || vrfs[2].RD != "" {
		t.Errorf("CUST-B parsed wrong: %+v", vrfs[2])
	}
}

func TestCiscoEmptyOutput(t *testing.T) {
	routes, err := ciscoParseRoutes("", DefaultVRF)
	if err != nil {
		t.Fatalf("empty output should not error: %v", err)
	}
	if len(routes) != 0 {
		t.Errorf("expected no routes, got %d", len(routes))
	}
}
