//go:build windows

package platform

// windowsLimits is a no-op: Windows has no process-wide file-descriptor
// soft limit analogous to RLIMIT_NOFILE.
type windowsLimits struct{}

// NewLimits returns the Limits implementation for Windows.
func NewLimits() Limits { return windowsLimits{} }

func (windowsLimits) RaiseFileDescriptorLimit(want uint64) (uint64, error) {
	return want, nil
}
