// Package paramgen implements the Parameter Generator (C5, spec.md
// §4.5): the synchronous request/response bridge between the tunnel
// machine's worker thread and the orchestrator's event loop. Grounded
// on the original daemon's generator-thread bridge — a blocking reply
// channel handed across the thread boundary once per connection
// attempt — realized here as a plain Go channel send/receive pair.
package paramgen

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"

	"vpnguard/internal/account"
	"vpnguard/internal/relay"
	"vpnguard/internal/settings"
)

// ErrorKind is the public error surface handed back to the tunnel
// machine, translated from account/relay-selector errors per spec.md
// §4.5 step 7.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrNoWireguardKey
	ErrCustomTunnelHostResolution
	ErrNoMatchingBridgeRelay
	ErrNoMatchingRelay
)

func (k ErrorKind) Error() string {
	switch k {
	case ErrNoWireguardKey:
		return "no WireGuard key available for current device"
	case ErrCustomTunnelHostResolution:
		return "failed to resolve custom relay hostname"
	case ErrNoMatchingBridgeRelay:
		return "no matching bridge relay"
	case ErrNoMatchingRelay:
		return "no matching relay"
	default:
		return "no error"
	}
}

// OpenVPNParameters is the parameter set handed to an OpenVPN tunnel
// worker. Generate builds one whenever the selector picks an OpenVPN
// relay; neither Generate nor its caller checks whether the platform
// supports OpenVPN.
type OpenVPNParameters struct {
	Endpoint     relay.Endpoint
	AccountToken string
	Mssfix       int
	Bridge       *relay.Bridge
}

// WireguardParameters is the parameter set handed to a WireGuard
// tunnel worker.
type WireguardParameters struct {
	Endpoint    relay.Endpoint
	ExitPeer    *relay.Endpoint // non-nil for multi-hop
	TunnelIPv4  netip.Addr
	TunnelIPv6  netip.Addr
	IPv4Gateway netip.Addr
	IPv6Gateway netip.Addr
	PrivateKey  account.WireguardKey
	MTU         int
	Obfuscator  *relay.Obfuscator
}

// Parameters is the tagged result Generate produces: exactly one of
// OpenVPN or WireGuard is set.
type Parameters struct {
	OpenVPN   *OpenVPNParameters
	WireGuard *WireguardParameters
}

// Request carries a synchronous GenerateTunnelParameters event
// (spec.md §4.5 step 1): the attempt number and a reply channel the
// orchestrator's handler answers on exactly once.
type Request struct {
	ID      uuid.UUID
	Attempt uint32
	Reply   chan<- Result
}

// Result is sent back on Request.Reply.
type Result struct {
	Params Parameters
	Err    error
}

// NewRequest builds a Request for attempt n with a fresh correlation
// ID, ready to post onto the event bus.
func NewRequest(attempt uint32, reply chan<- Result) Request {
	return Request{ID: uuid.New(), Attempt: attempt, Reply: reply}
}

// HostResolver resolves a custom relay's hostname to an address
// (spec.md §4.5 step 3).
type HostResolver interface {
	Resolve(hostname string) (netip.Addr, error)
}

// Generate implements the orchestrator-side handler for a
// GenerateTunnelParameters request (spec.md §4.5 steps 2-7). It never
// touches the reply channel itself — callers do that, since a failed
// send is logged but not fatal and that belongs to the caller's event
// loop, not this pure function.
func Generate(
	req Request,
	device *account.ActiveDevice,
	selector relay.Selector,
	resolver HostResolver,
	tunnelOpts settings.TunnelOptions,
) (Parameters, *relay.Selected, error) {
	if device == nil || device.Device.Pubkey == account.ZeroPubkey {
		return Parameters{}, nil, ErrNoWireguardKey
	}

	selected, bridge, obfs, err := selector.GetRelay(req.Attempt)
	if err != nil {
		return Parameters{}, nil, translateSelectorErr(err)
	}

	exit := selected.Exit
	if exit.Custom {
		addr, err := resolver.Resolve(exit.Hostname)
		if err != nil {
			return Parameters{}, nil, ErrCustomTunnelHostResolution
		}
		exit.Addr = netip.AddrPortFrom(addr, exit.Addr.Port())
		selected.Exit = exit
	}

	switch selected.Protocol {
	case relay.OpenVPN:
		params := Parameters{OpenVPN: &OpenVPNParameters{
			Endpoint:     exit,
			AccountToken: device.AccountToken,
			Mssfix:       tunnelOpts.OpenVPN.Mssfix,
			Bridge:       bridge,
		}}
		return params, &selected, nil

	default: // relay.WireGuard
		// Multi-hop: the tunnel peer is the entry relay and the exit relay
		// becomes ExitPeer.
		peer := exit
		var exitPeer *relay.Endpoint
		if selected.Entry != nil {
			peer = *selected.Entry
			e := exit
			exitPeer = &e
		}
		tunnelIPv4, _ := netip.ParseAddr(device.Device.IPv4Address)
		tunnelIPv6, _ := netip.ParseAddr(device.Device.IPv6Address)
		params := Parameters{WireGuard: &WireguardParameters{
			Endpoint:    peer,
			ExitPeer:    exitPeer,
			TunnelIPv4:  tunnelIPv4,
			TunnelIPv6:  tunnelIPv6,
			IPv4Gateway: exit.IPv4Gateway,
			IPv6Gateway: exit.IPv6Gateway,
			PrivateKey:  device.Device.Pubkey,
			MTU:         tunnelOpts.Wireguard.MTU,
			Obfuscator:  obfs,
		}}
		return params, &selected, nil
	}
}

func translateSelectorErr(err error) error {
	selErr, ok := err.(relay.SelectionError)
	if !ok {
		return ErrNoMatchingRelay
	}
	switch selErr {
	case relay.ErrNoKeyAvailable:
		return ErrNoWireguardKey
	case relay.ErrNoBridgeAvailable, relay.ErrNoBridge:
		return ErrNoMatchingBridgeRelay
	default:
		return ErrNoMatchingRelay
	}
}

// Describe renders a short human-readable summary of a built
// Parameters, used in logs.
func Describe(p Parameters) string {
	switch {
	case p.OpenVPN != nil:
		return fmt.Sprintf("openvpn to %s", p.OpenVPN.Endpoint.Addr)
	case p.WireGuard != nil:
		return fmt.Sprintf("wireguard to %s", p.WireGuard.Endpoint.Addr)
	default:
		return "none"
	}
}
