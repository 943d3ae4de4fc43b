package paramgen

import (
	"errors"
	"net/netip"
	"testing"

	"vpnguard/internal/account"
	"vpnguard/internal/relay"
	"vpnguard/internal/relay/relaytest"
	"vpnguard/internal/settings"
)

type stubResolver struct {
	addr netip.Addr
	err  error
}

func (s stubResolver) Resolve(hostname string) (netip.Addr, error) { return s.addr, s.err }

func testDevice() *account.ActiveDevice {
	return &account.ActiveDevice{
		AccountToken: "tok",
		Device: account.Device{
			ID:          "dev1",
			Pubkey:      account.WireguardKey{1, 2, 3},
			IPv4Address: "10.64.0.2",
			IPv6Address: "fc00:bbbb:bbbb:bb01::2",
		},
	}
}

func TestGenerateNoWireguardKey(t *testing.T) {
	req := NewRequest(0, nil)
	_, _, err := Generate(req, nil, relaytest.New(), stubResolver{}, settings.TunnelOptions{})
	if !errors.Is(err, ErrNoWireguardKey) {
		t.Fatalf("err = %v, want ErrNoWireguardKey", err)
	}
}

func TestGenerateWireguard(t *testing.T) {
	sel := relaytest.New()
	req := NewRequest(0, nil)
	params, selected, err := Generate(req, testDevice(), sel, stubResolver{}, settings.TunnelOptions{
		Wireguard: settings.WireguardOptions{MTU: 1380},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if params.WireGuard == nil {
		t.Fatal("expected WireGuard parameters")
	}
	if params.WireGuard.MTU != 1380 {
		t.Fatalf("MTU = %d, want 1380", params.WireGuard.MTU)
	}
	if selected == nil {
		t.Fatal("expected non-nil selected relay")
	}
	wantIPv4 := netip.MustParseAddr("10.64.0.2")
	wantIPv6 := netip.MustParseAddr("fc00:bbbb:bbbb:bb01::2")
	if params.WireGuard.TunnelIPv4 != wantIPv4 {
		t.Fatalf("TunnelIPv4 = %v, want %v", params.WireGuard.TunnelIPv4, wantIPv4)
	}
	if params.WireGuard.TunnelIPv6 != wantIPv6 {
		t.Fatalf("TunnelIPv6 = %v, want %v", params.WireGuard.TunnelIPv6, wantIPv6)
	}
	wantGW4 := netip.MustParseAddr("10.64.0.1")
	wantGW6 := netip.MustParseAddr("fc00:bbbb:bbbb:bb01::1")
	if params.WireGuard.IPv4Gateway != wantGW4 {
		t.Fatalf("IPv4Gateway = %v, want %v", params.WireGuard.IPv4Gateway, wantGW4)
	}
	if params.WireGuard.IPv6Gateway != wantGW6 {
		t.Fatalf("IPv6Gateway = %v, want %v", params.WireGuard.IPv6Gateway, wantGW6)
	}
}

func TestGenerateOpenVPN(t *testing.T) {
	sel := relaytest.New()
	sel.Protocol = relay.OpenVPN
	req := NewRequest(0, nil)
	params, _, err := Generate(req, testDevice(), sel, stubResolver{}, settings.TunnelOptions{
		OpenVPN: settings.OpenVPNOptions{Mssfix: 1450},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if params.OpenVPN == nil {
		t.Fatal("expected OpenVPN parameters")
	}
	if params.OpenVPN.Mssfix != 1450 {
		t.Fatalf("Mssfix = %d, want 1450", params.OpenVPN.Mssfix)
	}
}

func TestGenerateSelectorErrorTranslation(t *testing.T) {
	cases := []struct {
		in   relay.SelectionError
		want error
	}{
		{relay.ErrNoKeyAvailable, ErrNoWireguardKey},
		{relay.ErrNoBridgeAvailable, ErrNoMatchingBridgeRelay},
		{relay.ErrNoBridge, ErrNoMatchingBridgeRelay},
		{relay.ErrOther, ErrNoMatchingRelay},
	}
	for _, c := range cases {
		sel := relaytest.New()
		sel.Err = c.in
		_, _, err := Generate(NewRequest(0, nil), testDevice(), sel, stubResolver{}, settings.TunnelOptions{})
		if !errors.Is(err, c.want) {
			t.Fatalf("selector err %v -> %v, want %v", c.in, err, c.want)
		}
	}
}

func TestGenerateNonCustomRelaySkipsResolver(t *testing.T) {
	resolver := stubResolver{err: errors.New("dns failure")}
	_, _, err := Generate(NewRequest(0, nil), testDevice(), relaytest.New(), resolver, settings.TunnelOptions{})
	if err != nil {
		t.Fatalf("non-custom relay should not consult resolver, got err: %v", err)
	}
}
