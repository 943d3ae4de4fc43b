//go:build windows

package ipc

import (
	"time"

	"github.com/Microsoft/go-winio"
)

// ProbeStalePipe reports whether a Named Pipe is already listening at
// SocketPath, left behind by a previous instance that crashed before
// reaching its own shutdown sequence. A fresh winio.ListenPipe bound to
// the same path later will fail until the prior owner's process exits
// and the pipe instance is reclaimed by the kernel. It only probes and
// removes nothing (there is no file to unlink); the daemon does not
// call it.
func ProbeStalePipe() bool {
	conn, err := winio.DialPipe(SocketPath(), durationPtr(200*time.Millisecond))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func durationPtr(d time.Duration) *time.Duration { return &d }
