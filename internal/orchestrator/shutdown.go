package orchestrator

import (
	"context"
	"time"

	"vpnguard/internal/ipc"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
)

// dispatchShutdown implements TriggerShutdown's first three steps
// (spec.md §4.10); the remaining steps run once the Run loop observes
// ExecutionState reach Finished (see finishShutdown).
func (o *Orchestrator) dispatchShutdown(ctx context.Context, cmd Command) {
	o.execState.TriggerShutdown(o.cached.Phase == tunnelmachine.Disconnected)
	_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Disconnect})
	o.reply(cmd, Reply{})
	// Step 3 (drain until Disconnected observed) is the Run loop
	// itself: handleTunnelTransition's step 6 calls
	// ExecutionState.Disconnected(), and Run checks for Finished after
	// every event.
}

// dispatchPrepareRestart: if target = Secured, request
// BlockWhenDisconnected(true); then lock the target state store so the
// restarted process observes the pre-restart intent.
func (o *Orchestrator) dispatchPrepareRestart(cmd Command) {
	if o.targetState.Get() == targetstate.Secured {
		_ = o.tunnelMachine.Send(context.Background(), tunnelmachine.Command{Kind: tunnelmachine.BlockWhenDisconnected, Bool: true})
	}
	o.targetState.Lock()
	o.reply(cmd, Reply{})
}

// finishShutdown runs the Shutdown Coordinator's remaining steps once
// ExecutionState has reached Finished (spec.md §4.10 steps 4-5).
func (o *Orchestrator) finishShutdown(ctx context.Context) {
	cur := o.settings.Get()

	// Step 4: on the OS where auto-connect-on-boot is relevant, if
	// auto_connect is set, send BlockWhenDisconnected(true) before
	// releasing the tunnel machine, to prevent a leak window across
	// restart.
	if AutoConnectOnBootSupported && cur.AutoConnect {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = o.tunnelMachine.Send(shutdownCtx, tunnelmachine.Command{Kind: tunnelmachine.BlockWhenDisconnected, Bool: true})
		cancel()
	}

	// Step 5: await all queued shutdown tasks in order (target state
	// finalise, then account manager shutdown), matching the original's
	// sequential `for future in shutdown_tasks { future.await; }`.
	if err := o.targetState.Finalize(); err != nil {
		o.log.Warnf("Shutdown", "target state finalize failed: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := o.account.Shutdown(shutdownCtx); err != nil {
		o.log.Warnf("Shutdown", "account manager shutdown failed: %v", err)
	}
	cancel()

	// Tunnel state machine has already reached Disconnected (that's
	// what got us here); there is nothing further to join on this side
	// of the interface boundary.

	// Drop the event listener and API runtime: nothing to release on
	// this side beyond letting the references go out of scope with
	// this Orchestrator value.

	if err := ipc.RemoveStale(); err != nil {
		o.log.Warnf("Shutdown", "failed to remove stale IPC socket: %v", err)
	}

	// Factory Reset Pipeline step 5, if a reset is what drove this
	// shutdown (spec.md §4.11).
	o.finishFactoryReset()

	o.bus.Close()
}
