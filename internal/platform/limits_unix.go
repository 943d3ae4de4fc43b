//go:build unix

package platform

import "golang.org/x/sys/unix"

// unixLimits raises RLIMIT_NOFILE at daemon startup so a large
// split-tunnel app set and many concurrent relay probes never run the
// process out of file descriptors.
type unixLimits struct{}

// NewLimits returns the Limits implementation for POSIX platforms.
func NewLimits() Limits { return unixLimits{} }

func (unixLimits) RaiseFileDescriptorLimit(want uint64) (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}

	target := want
	if rlim.Max != unix.RLIM_INFINITY && target > rlim.Max {
		target = rlim.Max
	}
	if rlim.Cur >= target {
		return rlim.Cur, nil
	}

	rlim.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return target, nil
}
