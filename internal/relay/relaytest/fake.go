// Package relaytest provides an in-memory fake relay.Selector for
// orchestrator and paramgen tests.
package relaytest

import (
	"net/netip"
	"sync"

	"vpnguard/internal/relay"
)

// Fake is a deterministic relay.Selector. By default it returns a
// WireGuard endpoint; set Err to simulate selector failures.
type Fake struct {
	mu  sync.Mutex
	cfg relay.SelectorConfig
	Err error

	Protocol relay.TunnelProtocol
	Bridge   *relay.Bridge
	Obfs     *relay.Obfuscator
}

func New() *Fake {
	return &Fake{Protocol: relay.WireGuard}
}

func (f *Fake) GetRelay(attempt uint32) (relay.Selected, *relay.Bridge, *relay.Obfuscator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return relay.Selected{}, nil, nil, f.Err
	}

	sel := relay.Selected{
		Protocol: f.Protocol,
		Exit: relay.Endpoint{
			Protocol:    f.Protocol,
			Addr:        netip.MustParseAddrPort("10.0.0.1:51820"),
			Location:    relay.Location{Country: "se", City: "got", Hostname: "se-got-wg-001"},
			IPv4Gateway: netip.MustParseAddr("10.64.0.1"),
			IPv6Gateway: netip.MustParseAddr("fc00:bbbb:bbbb:bb01::1"),
		},
	}
	return sel, f.Bridge, f.Obfs, nil
}

func (f *Fake) SetConfig(cfg relay.SelectorConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

func (f *Fake) Config() relay.SelectorConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Fake) GetLocations() relay.List {
	return relay.List{WireGuard: []relay.Location{{Country: "se", City: "got"}}}
}
