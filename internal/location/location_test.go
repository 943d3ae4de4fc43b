package location

import (
	"context"
	"errors"
	"testing"

	"vpnguard/internal/relay"
	"vpnguard/internal/tunnelmachine"
)

type stubLookup struct {
	loc Location
	err error
}

func (s stubLookup) Lookup(ctx context.Context) (Location, error) { return s.loc, s.err }

func TestDisconnectedUsesIPLookup(t *testing.T) {
	r := New(stubLookup{loc: Location{IPv4: "1.2.3.4"}})
	got := r.Current(context.Background(), tunnelmachine.Disconnected)
	if got == nil || got.IPv4 != "1.2.3.4" {
		t.Fatalf("Current() = %+v, want IPv4 1.2.3.4", got)
	}
}

func TestDisconnectedLookupFailureReturnsNil(t *testing.T) {
	r := New(stubLookup{err: errors.New("timeout")})
	if got := r.Current(context.Background(), tunnelmachine.Disconnected); got != nil {
		t.Fatalf("Current() = %+v, want nil on lookup failure", got)
	}
}

func TestConnectingReturnsCachedSnapshot(t *testing.T) {
	r := New(stubLookup{})
	r.SetFromRelay(relay.Selected{Exit: relay.Endpoint{Location: relay.Location{Country: "se", City: "got"}}})
	got := r.Current(context.Background(), tunnelmachine.Connecting)
	if got == nil || got.City != "got" {
		t.Fatalf("Current() = %+v, want cached city got", got)
	}
}

func TestConnectedOverlaysIPOntoRelaySnapshot(t *testing.T) {
	r := New(stubLookup{loc: Location{IPv4: "9.9.9.9"}})
	r.SetFromRelay(relay.Selected{Exit: relay.Endpoint{Location: relay.Location{Country: "se", Hostname: "se-got-wg-001"}}})
	got := r.Current(context.Background(), tunnelmachine.Connected)
	if got == nil {
		t.Fatal("Current() = nil")
	}
	if got.Hostname != "se-got-wg-001" || got.IPv4 != "9.9.9.9" {
		t.Fatalf("Current() = %+v, want relay hostname preserved + overlaid IPv4", got)
	}
}

func TestConnectedFallsBackToCachedOnLookupFailure(t *testing.T) {
	r := New(stubLookup{err: errors.New("timeout")})
	r.SetFromRelay(relay.Selected{Exit: relay.Endpoint{Location: relay.Location{Country: "se"}}})
	got := r.Current(context.Background(), tunnelmachine.Connected)
	if got == nil || got.Country != "se" {
		t.Fatalf("Current() = %+v, want fallback to cached snapshot", got)
	}
}

func TestErrorPhaseReturnsNil(t *testing.T) {
	r := New(stubLookup{loc: Location{IPv4: "1.1.1.1"}})
	if got := r.Current(context.Background(), tunnelmachine.Error); got != nil {
		t.Fatalf("Current() = %+v, want nil in Error phase", got)
	}
}
