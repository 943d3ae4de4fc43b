// Package relay models the Relay Selector / Relay List Updater external
// collaborators (spec.md §6) and the relay/bridge/obfuscator data
// shapes the Parameter Generator (C5) and Location Resolver (C6) need.
// The selection algorithm itself is out of scope; this package only
// carries the interface and the types that flow through it.
package relay

import "net/netip"

// TunnelProtocol distinguishes the two tunnel transports spec.md names.
type TunnelProtocol int

const (
	WireGuard TunnelProtocol = iota
	OpenVPN
)

// Location is the user-visible geographic description of a relay.
type Location struct {
	Country   string
	City      string
	Latitude  float64
	Longitude float64
	Hostname  string
}

// Endpoint is a network endpoint for a relay of either protocol.
type Endpoint struct {
	Protocol TunnelProtocol
	Addr     netip.AddrPort
	Location Location
	// Custom marks a user-entered relay not from the relay list; its
	// Addr is looked up by hostname at parameter-generation time
	// (spec.md §4.5 step 3).
	Custom   bool
	Hostname string
	// IPv4Gateway/IPv6Gateway are the in-tunnel gateway addresses this
	// relay hands out, fed into the Parameter Generator's WireGuard
	// parameters (spec.md §4.5 step 5). IPv6Gateway is the zero Addr
	// when the relay offers no IPv6 path.
	IPv4Gateway netip.Addr
	IPv6Gateway netip.Addr
}

// Selected is one relay choice, possibly with an entry peer for
// WireGuard multi-hop.
type Selected struct {
	Protocol TunnelProtocol
	Exit     Endpoint
	Entry    *Endpoint // non-nil for multi-hop
}

// Bridge is a proxy relay used only with OpenVPN.
type Bridge struct {
	Addr     netip.AddrPort
	Location Location
}

// Obfuscator is a traffic-shaping relay used with WireGuard.
type Obfuscator struct {
	Addr netip.AddrPort
	Type string
}

// SelectionError distinguishes the selector failure kinds the
// Parameter Generator must translate (spec.md §4.5 step 7).
type SelectionError int

const (
	ErrNone SelectionError = iota
	ErrNoKeyAvailable
	ErrNoBridgeAvailable
	ErrNoBridge
	ErrOther
)

func (e SelectionError) Error() string {
	switch e {
	case ErrNoKeyAvailable:
		return "no key available"
	case ErrNoBridgeAvailable:
		return "no bridge available"
	case ErrNoBridge:
		return "no bridge"
	case ErrOther:
		return "relay selection failed"
	default:
		return "no error"
	}
}

// SelectorConfig carries the settings-derived constraints the selector
// needs: relay constraints, bridge settings, bridge state, and
// obfuscation settings (spec.md §4.9 field table). The fields are
// opaque blobs from the orchestrator's point of view; only
// set_config's caller (Settings Change Handler) and the selector
// itself interpret them.
type SelectorConfig struct {
	RelayConstraints  any
	BridgeSettings    any
	BridgeState       any
	ObfuscationConfig any
}

// Selector is the Relay Selector external collaborator contract.
type Selector interface {
	// GetRelay returns a relay choice for the given connection attempt
	// number, plus an optional bridge (OpenVPN) and/or obfuscator
	// (WireGuard). attempt lets the selector widen constraints on
	// successive retries (spec.md §5).
	GetRelay(attempt uint32) (Selected, *Bridge, *Obfuscator, error)
	SetConfig(cfg SelectorConfig)
	GetLocations() List
}

// List is the full relay list surfaced to UI clients via
// GetRelayLocations.
type List struct {
	WireGuard []Location
	OpenVPN   []Location
}

// ListUpdater refreshes List from the API and invokes a callback on
// change.
type ListUpdater interface {
	Update() error
	OnChange(func(List))
}
