// Package location implements the Location Resolver (C6, spec.md
// §4.6): the user-visible "current location" value, combining a
// cached relay-derived snapshot with an async IP-based lookup
// depending on tunnel phase.
package location

import (
	"context"

	"vpnguard/internal/relay"
	"vpnguard/internal/tunnelmachine"
)

// Location is the resolved geographic description surfaced to UI
// clients.
type Location struct {
	Country  string
	City     string
	Lat      float64
	Lon      float64
	Hostname string
	IPv4     string
	IPv6     string
}

// IPLookup performs the async IP-based geolocation call against the
// API. Left opaque: the REST surface itself is out of scope.
type IPLookup interface {
	Lookup(ctx context.Context) (Location, error)
}

// Resolver holds the last relay-derived snapshot and answers Current
// per spec.md §4.6's per-phase table.
type Resolver struct {
	lookup IPLookup
	cached *Location // last relay-derived snapshot, set by SetFromRelay
}

func New(lookup IPLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// SetFromRelay records the location implied by a freshly selected
// relay, used for the Connecting/Disconnecting branches and as the
// overlay base while Connected (spec.md §4.5 step 6 feeds this).
func (r *Resolver) SetFromRelay(sel relay.Selected) {
	loc := sel.Exit.Location
	r.cached = &Location{
		Country:  loc.Country,
		City:     loc.City,
		Lat:      loc.Latitude,
		Lon:      loc.Longitude,
		Hostname: loc.Hostname,
	}
}

// Clear drops the cached relay-derived snapshot, e.g. on disconnect
// completion.
func (r *Resolver) Clear() { r.cached = nil }

// Current resolves the location for the given tunnel phase (spec.md
// §4.6):
//   - Disconnected: async IP lookup; nil on failure.
//   - Connecting: the cached relay snapshot (may be nil).
//   - Disconnecting: the cached relay snapshot verbatim.
//   - Connected: IP lookup overlaid onto the cached relay snapshot,
//     preserving relay hostnames; falls back to the relay snapshot
//     alone if the lookup fails.
//   - Error: nil.
func (r *Resolver) Current(ctx context.Context, phase tunnelmachine.Phase) *Location {
	switch phase {
	case tunnelmachine.Disconnected:
		loc, err := r.lookup.Lookup(ctx)
		if err != nil {
			return nil
		}
		return &loc

	case tunnelmachine.Connecting:
		return r.cached

	case tunnelmachine.Disconnecting:
		return r.cached

	case tunnelmachine.Connected:
		ipLoc, err := r.lookup.Lookup(ctx)
		if err != nil {
			return r.cached
		}
		if r.cached == nil {
			return &ipLoc
		}
		overlaid := *r.cached
		overlaid.IPv4 = ipLoc.IPv4
		overlaid.IPv6 = ipLoc.IPv6
		return &overlaid

	default: // tunnelmachine.Error
		return nil
	}
}
