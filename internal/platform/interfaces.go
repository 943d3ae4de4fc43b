// Package platform abstracts the capability-gated, OS-specific shims
// the orchestrator drives: split tunneling, socket-bypass control,
// filesystem volume-change notification, and the startup file-handle
// limit bump. Each capability collapses to a no-op behind its
// interface on platforms that do not support it, mirroring the
// teacher's internal/platform/{darwin,windows} factory split.
package platform

import "net/netip"

// SplitTunnel abstracts per-process traffic exclusion. Collapses to a
// no-op implementation on platforms without a split-tunnel driver.
type SplitTunnel interface {
	// SetExcludedPaths replaces the full excluded-application set.
	SetExcludedPaths(paths []string) error
	// SetEnabled toggles split tunneling without discarding the set.
	SetEnabled(enabled bool) error
	// Close tears down any kernel-level state.
	Close() error
}

// SocketBypasser exempts a single file descriptor from the tunnel's
// default routing, used for the daemon's own control-plane sockets.
type SocketBypasser interface {
	Bypass(fd int) error
}

// VolumeWatcher notifies on filesystem volume attach/detach events. The
// orchestrator does not hold one or register a callback.
type VolumeWatcher interface {
	// OnChange registers a callback invoked on every volume change.
	OnChange(func())
	Close() error
}

// Limits abstracts startup resource-limit adjustments.
type Limits interface {
	// RaiseFileDescriptorLimit attempts to raise the process's open-file
	// soft limit to at least want, returning the limit actually in
	// effect afterward.
	RaiseFileDescriptorLimit(want uint64) (uint64, error)
}

// Capabilities bundles every platform shim the orchestrator needs,
// mirroring the teacher's Platform aggregate struct.
type Capabilities struct {
	SplitTunnel   SplitTunnel
	SocketBypass  SocketBypasser
	VolumeWatcher VolumeWatcher
	Limits        Limits
}

// LocalSubnets returns the RFC1918 (and link-local) prefixes that stay
// reachable outside the tunnel when allow-LAN is enabled. This is pure
// data, identical on every platform, so it lives outside the per-OS
// build-tagged files.
func LocalSubnets() []netip.Prefix {
	return []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("169.254.0.0/16"),
		netip.MustParsePrefix("fe80::/10"),
		netip.MustParsePrefix("fc00::/7"),
	}
}
