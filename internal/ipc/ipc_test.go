package ipc

import (
	"os"
	"runtime"
	"testing"
)

func TestSocketPathNonEmpty(t *testing.T) {
	if SocketPath() == "" {
		t.Fatal("SocketPath() returned empty string")
	}
}

func TestRemoveStaleMissingFileIsNotError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Named Pipes leave no filesystem entry to remove")
	}
	if err := RemoveStale(); err != nil {
		if _, statErr := os.Stat(SocketPath()); os.IsNotExist(statErr) {
			t.Fatalf("RemoveStale() = %v with no socket present", err)
		}
	}
}
