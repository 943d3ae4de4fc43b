package platform

import "testing"

func TestLocalSubnetsParse(t *testing.T) {
	subnets := LocalSubnets()
	if len(subnets) == 0 {
		t.Fatal("expected at least one local subnet prefix")
	}
	for _, p := range subnets {
		if !p.IsValid() {
			t.Fatalf("invalid prefix: %v", p)
		}
	}
}

func TestNoopSplitTunnelTracksState(t *testing.T) {
	st := NewNoopSplitTunnel()
	if err := st.SetExcludedPaths([]string{"/usr/bin/foo"}); err != nil {
		t.Fatalf("SetExcludedPaths: %v", err)
	}
	if err := st.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	ns := st.(*noopSplitTunnel)
	if len(ns.paths) != 1 || ns.paths[0] != "/usr/bin/foo" || !ns.enabled {
		t.Fatalf("tracked state = paths %v enabled %v, want [/usr/bin/foo] true", ns.paths, ns.enabled)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCapabilitiesFactory(t *testing.T) {
	caps := New()
	if caps.SplitTunnel == nil || caps.SocketBypass == nil || caps.VolumeWatcher == nil || caps.Limits == nil {
		t.Fatal("New() returned Capabilities with a nil field")
	}
}
