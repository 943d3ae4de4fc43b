package platform

// New assembles the Capabilities for the current platform. The
// file-descriptor limit shim is the only one with a real OS-specific
// backend today (limits_unix.go / limits_windows.go); split tunneling,
// socket bypass, and volume watching use the tracking no-op shims
// until a native driver is wired in, per spec.md's scoping of the
// kernel-level tunnel/firewall driver as out-of-scope (see DESIGN.md).
func New() *Capabilities {
	return &Capabilities{
		SplitTunnel:   NewNoopSplitTunnel(),
		SocketBypass:  NewNoopSocketBypass(),
		VolumeWatcher: NewNoopVolumeWatcher(),
		Limits:        NewLimits(),
	}
}
