package orchestrator

import (
	"net"
	"net/netip"

	"vpnguard/internal/account"
	"vpnguard/internal/paramgen"
)

// dnsHostResolver implements paramgen.HostResolver against the host's
// standard resolver, used only for Custom relay hostnames (spec.md
// §4.5 step 3).
type dnsHostResolver struct{}

func (dnsHostResolver) Resolve(hostname string) (netip.Addr, error) {
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil {
			return addr, nil
		}
	}
	return netip.Addr{}, &net.AddrError{Err: "no usable address", Addr: hostname}
}

// handleGenerateTunnelParameters answers the tunnel machine's
// synchronous parameter request (spec.md §4.5 steps 2-8). This handler
// never blocks on the tunnel machine itself — it only sends the result
// back on the request's own reply channel.
func (o *Orchestrator) handleGenerateTunnelParameters(req paramgen.Request) {
	var devPtr *account.ActiveDevice
	if dev, ok := o.account.Current(); ok {
		devPtr = &dev
	}

	params, selected, err := paramgen.Generate(
		req,
		devPtr,
		o.relaySelector,
		dnsHostResolver{},
		o.settings.Get().Tunnel,
	)

	if err == nil && selected != nil && o.location != nil {
		o.location.SetFromRelay(*selected)
	}

	if req.Reply == nil {
		return
	}
	select {
	case req.Reply <- paramgen.Result{Params: params, Err: err}:
	default:
		o.log.Warnf("ParamGen", "failed to send tunnel parameters for attempt %d: reply channel not ready", req.Attempt)
	}
}
