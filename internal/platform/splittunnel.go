package platform

import (
	"sync"

	"vpnguard/internal/logging"
)

// noopSplitTunnel implements SplitTunnel for platforms without a
// kernel-level per-process filter, or as the state-tracking shim shared
// by the darwin/windows factories until their native drivers are wired
// up. It records the requested paths and flag, though nothing outside
// this package's tests reads them back (GetSettings answers from the
// settings store), matching how the teacher's PF/WFP filters are fronted
// by a platform.ProcessFilter interface regardless of backing.
type noopSplitTunnel struct {
	mu      sync.Mutex
	paths   []string
	enabled bool
}

// NewNoopSplitTunnel returns a SplitTunnel that tracks requested state
// without touching the kernel.
func NewNoopSplitTunnel() SplitTunnel { return &noopSplitTunnel{} }

func (s *noopSplitTunnel) SetExcludedPaths(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append([]string(nil), paths...)
	logging.Log.Debugf("Platform", "split tunnel paths set: %d entries", len(paths))
	return nil
}

func (s *noopSplitTunnel) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

func (s *noopSplitTunnel) Close() error { return nil }

// noopSocketBypass implements SocketBypasser where no interface-bypass
// socket option is wired up for the platform.
type noopSocketBypass struct{}

func NewNoopSocketBypass() SocketBypasser { return noopSocketBypass{} }

func (noopSocketBypass) Bypass(fd int) error { return nil }

// noopVolumeWatcher implements VolumeWatcher where no filesystem
// volume-change notification source is wired up for the platform.
type noopVolumeWatcher struct{}

func NewNoopVolumeWatcher() VolumeWatcher { return noopVolumeWatcher{} }

func (noopVolumeWatcher) OnChange(func()) {}
func (noopVolumeWatcher) Close() error    { return nil }
