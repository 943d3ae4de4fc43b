// Package ipc owns the management-socket path and its stale-file
// cleanup for the Shutdown Coordinator (spec.md §4.10 step 4). The
// management RPC surface exposed to UI clients is explicitly out of
// scope (spec.md §1); this package never frames or dials a connection,
// it only names where the real transport would live and removes what
// it leaves behind, grounded on the teacher's
// platform/{windows,darwin}/ipc.go path constants.
package ipc

import (
	"errors"
	"os"
	"runtime"
)

// SocketPath returns the well-known management-socket path for the
// current platform: a Named Pipe path on Windows (go-winio's
// convention, cleaned up by the OS on process exit so Remove is a
// no-op there), a Unix domain socket path elsewhere.
func SocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\vpnguard`
	}
	return "/var/run/vpnguard.sock"
}

// RemoveStale deletes a leftover Unix domain socket file from a
// previous, uncleanly terminated run. Named Pipes have no backing
// filesystem entry to remove, so this is a no-op on Windows.
func RemoveStale() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	err := os.Remove(SocketPath())
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
