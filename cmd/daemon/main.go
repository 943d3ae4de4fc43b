package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vpnguard/internal/account"
	"vpnguard/internal/eventbus"
	"vpnguard/internal/location"
	"vpnguard/internal/logging"
	"vpnguard/internal/orchestrator"
	"vpnguard/internal/platform"
	"vpnguard/internal/settings"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/versioncheck"
)

// Build info — injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	settingsPath := flag.String("settings", "settings.yaml", "Path to the settings file")
	targetStatePath := flag.String("target-state", "target-state.yaml", "Path to the target-state file")
	historyPath := flag.String("account-history", "account-history.yaml", "Path to the account-history file")
	cacheDir := flag.String("cache-dir", "cache", "Path to the daemon's cache directory")
	logDir := flag.String("log-dir", "", "Directory for log files (empty disables file logging)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vpnguard-daemon %s (commit=%s)\n", version, commit)
		os.Exit(0)
	}

	// === 1. Settings + target state ===
	settingsStore, err := settings.Load(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load settings: %v\n", err)
		os.Exit(1)
	}
	targetStateStore, err := targetstate.Load(*targetStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load target state: %v\n", err)
		os.Exit(1)
	}
	historyStore, err := account.LoadHistory(*historyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load account history: %v\n", err)
		os.Exit(1)
	}

	// === 2. Logging — must be assigned before orchestrator.New, which
	// captures logging.Log at construction time ===
	logging.Log = logging.New(logging.Config{Directory: *logDir})
	defer logging.Log.Close()

	// === 3. Platform capabilities (split tunnel, socket bypass, rlimit) ===
	caps := platform.New()
	if raised, err := caps.Limits.RaiseFileDescriptorLimit(minFileHandleSoftLimit); err != nil {
		logging.Log.Warnf("Daemon", "failed to raise file descriptor limit: %v", err)
	} else {
		logging.Log.Debugf("Daemon", "file descriptor soft limit now %d", raised)
	}

	// === 4. External collaborators ===
	// relay.Selector, tunnelmachine.Machine, account.Manager,
	// apiruntime.Availability, versioncheck.Fetcher, location.IPLookup,
	// and orchestrator.Listener are all out-of-scope external
	// collaborators per spec.md §1 ("specified only by interface").
	// What follows are the minimal stand-ins from stubs.go; swap each
	// for its real platform-specific driver without touching
	// internal/orchestrator.
	tunnelMachine := newLoopbackTunnelMachine()
	accountManager := newMemoryAccountManager()
	relaySelector := newStaticRelaySelector()
	availability := noopAvailability{log: logging.Log}
	locationResolver := location.New(noopIPLookup{})
	listener := logListener{log: logging.Log}

	versionChecker := versioncheck.New(staticVersionFetcher{current: version}, time.Hour)

	bus := eventbus.New()

	// === 5. Orchestrator ===
	orch := orchestrator.New(orchestrator.Config{
		Bus:           bus,
		TargetState:   targetStateStore,
		Settings:      settingsStore,
		History:       historyStore,
		Account:       accountManager,
		RelaySelector: relaySelector,
		TunnelMachine: tunnelMachine,
		Availability:  availability,
		VersionCheck:  versionChecker,
		Location:      locationResolver,
		SplitTunnel:   caps.SplitTunnel,
		Listener:      listener,
		CacheDir:      *cacheDir,
		LogDir:        *logDir,
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	versionChecker.Start(runCtx)

	done := make(chan struct{})
	go func() {
		if err := orch.Run(runCtx); err != nil && runCtx.Err() == nil {
			logging.Log.Errorf("Daemon", "orchestrator run loop exited: %v", err)
		}
		close(done)
	}()

	logging.Log.Infof("Daemon", "running (settings=%s target-state=%s)", filepathAbs(*settingsPath), filepathAbs(*targetStatePath))

	// === 6. Wait for shutdown signal ===
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Log.Infof("Daemon", "signal received, shutting down...")

	reply := make(chan orchestrator.Reply, 1)
	if err := orch.Submit(orchestrator.Command{Kind: orchestrator.CmdShutdown, Reply: reply}); err != nil {
		logging.Log.Warnf("Daemon", "failed to submit shutdown command: %v", err)
	} else {
		<-reply
	}

	select {
	case <-done:
		logging.Log.Infof("Daemon", "shutdown complete.")
	case <-time.After(10 * time.Second):
		logging.Log.Errorf("Daemon", "shutdown timed out, forcing exit.")
		versionChecker.Stop()
		runCancel()
		logging.Log.Close()
		os.Exit(1)
	}

	versionChecker.Stop()
	runCancel()
}

const minFileHandleSoftLimit = 1024

func filepathAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
