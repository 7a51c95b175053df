package rib

import (
	"testing"
)

func TestLookupPlatformWinsOverVendor(t *testing.T) {
	d, err := Lookup("cisco", "cisco_xr")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got := d.RouteCmd(DefaultVRF); got != "show route" {
		t.Errorf("expected xr route command, got %q", got)
	}
	d, err = Lookup("cisco", "")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got := d.RouteCmd(DefaultVRF); got != "show ip route" {
		t.Errorf("expected ios route command, got %q", got)
	}
}

func TestLookupUnknownVendor(t *testing.T) {
	if _, err := Lookup("nortel", ""); err == nil {
		t.Errorf("expected error for unknown vendor")
	}
}

func TestClean(t *testing.T) {
	in := "line one\x1b[0m   \r\nab\x08c\n --More-- \nline two\r\n"
	got := Clean(in)
	want := "line one\nac\n\nline two\n"
	if got != want {
		t.Errorf("Clean: got %q want %q", got, want)
	}
}

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.0/24", "10.0.0.0/24"},
		{"10.0.0.0 255.255.255.0", "10.0.0.0/24"},
		{"192.168.1.1", "192.168.1.1/32"},
		{"0.0.0.0/0", "0.0.0.0/0"},
	}
	for _, tt := range tests {
		p, err := parseNetwork(tt.in)
		if err != nil {
			t.Errorf("parseNetwork(%q): %v", tt.in, err)
			continue
		}
		if p.String() != tt.want {
			t.Errorf("parseNetwork(%q) = %s, want %s", tt.in, p, tt.want)
		}
	}
}

func TestParseNetworkBad(t *testing.T) {
	for _, in := range []string{"not-a-network", "10.0.0.0 255.255.0.255", ""} {
		if _, err := parseNetwork(in); err == nil {
			t.Errorf("parseNetwork(%q): expected error", in)
		}
	}
}

func TestNormalizeUnknown(t *testing.T) {
	if got := normalize(ciscoProtocols, "cisco", "Q"); got != "unknown" {
		t.Errorf("unrecognized code: got %q want unknown", got)
	}
	if got := normalize(ciscoProtocols, "cisco", "*S*"); got != "static" {
		t.Errorf("starred code: got %q want static", got)
	}
}
