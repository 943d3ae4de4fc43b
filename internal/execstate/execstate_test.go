package execstate

import "testing"

func TestTriggerShutdownWhileConnected(t *testing.T) {
	tr := New()
	if got := tr.TriggerShutdown(false); got != Exiting {
		t.Fatalf("expected Exiting, got %v", got)
	}
	if got := tr.Disconnected(); got != Finished {
		t.Fatalf("expected Finished after disconnect, got %v", got)
	}
}

func TestTriggerShutdownAlreadyDisconnected(t *testing.T) {
	tr := New()
	if got := tr.TriggerShutdown(true); got != Finished {
		t.Fatalf("expected immediate Finished, got %v", got)
	}
}

func TestFinishedIsTerminal(t *testing.T) {
	tr := New()
	tr.TriggerShutdown(true)
	if got := tr.TriggerShutdown(false); got != Finished {
		t.Fatalf("expected Finished to stay Finished, got %v", got)
	}
	if got := tr.Disconnected(); got != Finished {
		t.Fatalf("expected Finished to stay Finished, got %v", got)
	}
}

func TestIsRunning(t *testing.T) {
	tr := New()
	if !tr.IsRunning() {
		t.Fatal("expected Running initially")
	}
	tr.TriggerShutdown(false)
	if tr.IsRunning() {
		t.Fatal("expected not running after shutdown trigger")
	}
}
