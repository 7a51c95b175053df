package probe

import "testing"

func TestVendor(t *testing.T) {
	tests := []struct {
		descr string
		want  string
	}{
		{"Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 15.0(2)SE", "cisco"},
		{"Cisco IOS XR Software, Version 7.3.2", "cisco"},
		{"Juniper Networks, Inc. mx480 internet router, kernel JUNOS 20.4R3", "juniper"},
		{"Huawei Versatile Routing Platform Software VRP (R) software", "huawei"},
		{"Linux r1 5.10.0 #1 SMP x86_64", ""},
	}
	for _, tt := range tests {
		if got := Vendor(tt.descr); got != tt.want {
			t.Errorf("Vendor(%q) = %q, want %q", tt.descr, got, tt.want)
		}
	}
}

func TestPlatform(t *testing.T) {
	tests := []struct {
		descr string
		want  string
	}{
		{"Cisco IOS XR Software, Version 7.3.2", "cisco_xr"},
		{"Cisco IOS XE Software, Version 17.03.04", "cisco_xe"},
		{"Cisco IOS Software, C2960 Software", "cisco_ios"},
		{"Juniper Networks, Inc. mx480, kernel JUNOS 20.4R3", "juniper_junos"},
		{"Huawei Versatile Routing Platform Software VRP (R)", "huawei_vrp"},
		{"Linux r1 5.10.0", ""},
	}
	for _, tt := range tests {
		if got := Platform(tt.descr); got != tt.want {
			t.Errorf("Platform(%q) = %q, want %q", tt.descr, got, tt.want)
		}
	}
}
