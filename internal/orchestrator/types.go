// Package orchestrator implements the Daemon Orchestrator: the
// single-threaded event loop (spec.md §5) that owns every other
// component (C1-C11) and serialises all state mutation. Grounded on
// the original daemon's `handle_command` / `handle_tunnel_state_
// transition` / `shutdown` / factory-reset sequence, and on the
// teacher's internal/daemon/controller.go for the overall
// "single task owns a state machine, long operations spawned and
// reported back" shape.
package orchestrator

import (
	"vpnguard/internal/account"
	"vpnguard/internal/relay"
	"vpnguard/internal/settings"
	"vpnguard/internal/tunnelmachine"
	"vpnguard/internal/versioncheck"
)

// TunnelState is the cached, listener-facing tunnel state: the raw
// machine-reported state overlaid with the resolved current location
// (spec.md §4.8 step 3).
type TunnelState struct {
	tunnelmachine.State
	Location *LocationSnapshot
}

// LocationSnapshot avoids an import of internal/location from this
// package's exported surface; orchestrator.go converts.
type LocationSnapshot struct {
	Country, City, Hostname, IPv4, IPv6 string
	Lat, Lon                            float64
}

// Listener is the Event Listener external collaborator (spec.md §6):
// every orchestrator-observable change is reported through exactly one
// of these calls.
type Listener interface {
	NotifyNewState(TunnelState)
	NotifySettings(settings.Settings)
	NotifyRelayList(relay.List)
	NotifyAppVersion(versioncheck.AppVersionInfo)
	NotifyDeviceEvent(account.PrivateDeviceEvent)
	NotifyRemoveDeviceEvent([]account.Device)
}
